// Package exit is the event outbox. Every event a committed transition
// emits is stored here under the transition's sequence number before
// anyone outside the process can see it; the broadcaster then moves
// records through NEW → SENT → ACKED (or FAILED and back to SENT on
// retry). ACKED records are garbage collected after a snapshot.
package exit
