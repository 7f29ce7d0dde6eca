// Package repo exposes the application-facing data operations. Every
// write follows the optimistic pattern: stamp the record, persist it
// to the local cache immediately, then hand a mutation to the sync
// coordinator. Callers always see their write reflected locally no
// matter what the network is doing.
package repo
