// Package model describes the base objects manipulated by monorel.
//
// The object model for monorel is composed of:
//
//	Packages:
//	  A releasable unit of the monorepo, living in its own directory with a manifest
//	  carrying its name and current version, and a changelog.
//
//	Commits:
//	  Commits of the repository history. Commits produced by the release automation
//	  are recognized by a structural marker in their message.
//
//	Release tags:
//	  An immutable binding of a package version to the commit it was cut from,
//	  analogous to a git tag such as "core@1.3.0".
//
//	Events and runs:
//	  A pipeline event (merge request approved, push to the protected branch) creates
//	  a new run, which walks a small state machine down to a terminal outcome.
package model
