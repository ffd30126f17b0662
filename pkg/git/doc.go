// Package git provides typed access to the git CLI for the release engines.
//
// All commands target a specific repository directory via the -C flag,
// which is injected by every Repository method. Commands are run through a
// CommandExecutor, which tests replace with a mock.
//
// git is driven through its command-line executable rather than a Go git
// library, so that the credential rewriting of the remote URL, atomic pushes
// and worktrees behave exactly like the CI platform's own git.
package git
