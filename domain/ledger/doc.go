// Package ledger is the in-memory balance book the registry escrows
// deposits against. Every account has a free and a reserved balance;
// reserving moves funds from free to reserved, unreserving moves them
// back, and slashing destroys reserved funds and hands the resulting
// imbalance to an OnSlashed handler.
//
// Like the registry, the ledger is single-writer and deterministic.
// The service layer serializes every call.
package ledger
