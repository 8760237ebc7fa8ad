// Command settingsctl inspects and edits a file-backed settings stack.
//
// The Default level is the bundled resource, the App level is read from an
// optional packaged file or the store, and the User level of the selected
// profile is read from and saved to the store directory. Every edit goes
// through an edit buffer, so finder invariants are checked before anything
// is written.
package main
