package session

// Subscribe returns a channel that receives the session state after every
// change, starting with the current state, and a function that ends the
// subscription.
//
// The channel holds one state. A slow reader misses intermediate states but
// always sees the latest one. The channel is closed when the subscription ends
// or the session is closed.
func (s *WalletSession) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// notifyLocked delivers the current state to every subscriber, replacing any
// state a subscriber has not read yet. s.mu must be held.
func (s *WalletSession) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.snapshotLocked()
	}
}
