// Package state defines persistence-facing contracts for loading and saving
// per-level settings documents, plus a small resolver that assembles a
// config.Stack from them.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Resolver loads the App and User documents of a domain and layers them
//     over the bundled defaults with config.NewStack.
//   - Resolver.Mutate edits the User level, checks rules and saves it; the
//     Default and App levels are never written through a Resolver.
//   - The settings and config packages remain persistence-agnostic; all
//     file handling stays behind Store implementations.
//
// Data flow:
//
//	Store -> Resolver -> config.NewStack(...) -> *config.Stack
//
// Concurrency:
//
//	FileStore.Save holds an exclusive lock file next to the document and
//	renames a fully written temp file into place. Meta.ETag is the sha256 of
//	the document bytes and doubles as an optimistic concurrency token.
//
// Deterministic keys:
//
//	Ref.Identifier() yields "default/<domain>", "app/<domain>" or
//	"user/<profile>/<domain>"; FileStore maps it onto "<root>/<id>.xml".
package state
