// Package workspace discovers the packages of a monorepo and edits their
// manifests and changelogs.
//
// All paths are slash-separated and relative to the root of an afero.Fs
// rooted at the repository, so that the same code serves the working
// copy, detached snapshots and in-memory test fixtures.
package workspace
