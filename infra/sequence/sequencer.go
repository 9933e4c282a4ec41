package sequence

import "sync/atomic"

// Sequencer hands out transition sequence numbers.
// Numbers are strictly increasing; the first one issued is start+1.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose last issued number is start.
// On a fresh store start is 0; after replay it is the last replayed seq.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next issues the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// ResumeAfter moves the sequencer forward to v. It never moves it back,
// so a snapshot older than the journal cannot cause numbers to repeat.
func (s *Sequencer) ResumeAfter(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
