// Package meta implements the object model of the VibeScript runtime:
//   - Modules and classes joined by superclass, include and prepend links,
//     with a deterministic ancestor linearization.
//   - Method resolution, including `super` resolution that resumes after the
//     declaring module and tombstones left by `undef`.
//   - Constant resolution through the receiver, the lexical scope chain, the
//     ancestors and finally Object for pure modules.
//   - Class variables shared across a hierarchy, with singleton classes
//     redirecting to the object they are attached to.
//   - A chained hash table that compares keys either by identity or through
//     user-level `eql?`.
//   - The class lifecycle: new → allocate → initialize → inherited.
//
// A Runtime owns the graph. It is safe for concurrent use; resolvers take a
// consistent snapshot and never hold the graph lock while user code runs.
package meta
