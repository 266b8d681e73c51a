// Package cli provides the interactive whattodo command-line client.
//
// It wires configuration, the local database, the remote authority client,
// the reconcile scheduler and an interactive REPL that keeps working while
// the authority is unreachable. Every write lands in the local outbox first
// and is pushed by the scheduler in the background; reads show the local
// mirror with queued changes applied.
//
// Key features:
//   - Login / Register / Logout (online with offline fallback)
//   - Lists: create, edit, delete, clone, upload a cover
//   - Items: add, change status, move between lists, delete
//   - Recent activity, export to JSON
//   - Manual sync, mirror refresh and the pending change count
//
// Besides the REPL, the cobra root command offers one-shot "sync" and
// "status" subcommands and "serve", which runs the offline-capable HTTP
// front for the web app. See NewRootCommand, App and runREPL.
package cli
