// Package cli provides the interactive GophSync todo client.
//
// The App is handed a running sync engine and the services built on top of
// it. Edits are applied to the local store right away and work offline;
// signing in opens the engine's readiness gate so queued changes are
// delivered and the server's changes are pulled.
//
// Commands:
//   - register, login, logout
//   - add, toggle, edit, delete, list
//   - sync, resync, reset, status
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher and runREPL for details.
package cli
