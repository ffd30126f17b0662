// Package credential brokers the push credential of a release run.
//
// A credential is scoped to one run: it is read from a protected pipeline
// variable, held in a secret buffer, bound to the run deadline and injected
// into the remote URL of the workspace for the duration of the run only.
// Releasing the credential restores the remote URL and wipes the secret.
package credential
