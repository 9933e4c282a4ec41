// Package entry is the command journal: a segmented, CRC-framed
// write-ahead log of every transition submitted to the registry, in
// sequence order. Replaying it on top of the latest snapshot rebuilds
// the in-memory state exactly.
//
// Frame layout:
//
//	[type:1][seq:8][time:8][len:4][payload][crc:4]
//
// The CRC covers header and payload.
package entry
