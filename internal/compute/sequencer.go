package compute

import "sync/atomic"

// Sequencer restores "latest request wins" on top of a channel that does
// not order its responses. Every submission takes a ticket from Next; a
// response is only applied if its ticket is still the newest one issued.
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a new ticket, superseding every earlier one
func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

// Accept reports whether ticket is the most recently issued one
func (s *Sequencer) Accept(ticket uint64) bool {
	return ticket != 0 && ticket == s.latest.Load()
}

// Latest returns the newest ticket, 0 if none was issued
func (s *Sequencer) Latest() uint64 {
	return s.latest.Load()
}
