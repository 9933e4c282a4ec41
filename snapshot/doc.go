// Package snapshot persists the registry and the ledger it escrows
// against as one gob file, stamped with the last applied sequence.
// The command journal is replayed on top of it at start-up and can be
// truncated up to its sequence.
package snapshot
