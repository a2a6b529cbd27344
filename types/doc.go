// Package types defines the core domain types shared across skillstream:
// invocation requests, skill contexts, action results, triggers, token
// usage accounting, and the unified error taxonomy.
//
// Types in this package are plain data. Behavior lives in the skill,
// store, and queue packages; keeping the data model dependency-free lets
// every other package import it without cycles.
package types
