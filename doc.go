/*
Package monorel provides CI tooling to release the packages of a monorepo.

The primary goal of monorel is to version, tag and publish each package of a
repository independently, from the pipelines of its merge requests: versions are
bumped on feature branches once a merge request is approved, and published from
the tagged snapshots after the merge into the protected branch.
*/
package monorel
