// Package registry implements the deposit-gated label registry.
//
// Every account may hold at most one label. Registering the first
// label reserves a fixed deposit through the currency collaborator;
// replacing the label leaves the deposit alone; clearing the label
// removes the entry and unreserves exactly the deposit it was created
// with.
//
// The registry is single-writer and deterministic. It performs no
// locking: the host (package service) applies one transition at a
// time, and every operation either fails before mutating anything or
// completes in full.
package registry
