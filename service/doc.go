// Package service hosts the label registry. It is the only write
// entry point: it serializes transitions, journals each one before it
// is applied, and commits the emitted event to the outbox only when the
// transition succeeds.
//
// It exposes Set, Clear, ForceSet, ForceClear and Endow plus read-only
// queries, decoupled from network transports like gRPC.
package service
