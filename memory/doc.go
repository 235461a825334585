// Package memory provides core.MemoryStore implementations for conversational
// recall. The in-memory store uses naive substring search and exists for
// tests and prototypes; production deployments should back the interface with
// a vector or keyword index.
package memory
