// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package changetoken

import "sync"

// Subscription keeps a consumer attached across generations. See OnChange.
type Subscription struct {
	producer func() *Token
	consumer func()

	mu     sync.Mutex
	closed bool
	reg    *Registration
}

// OnChange invokes consumer every time the token returned by producer fires.
// The subscription moves to the next token before consumer runs, so every
// generation gets its own invocation. Each invocation runs on the goroutine
// that raised the change; consumer must tolerate concurrent calls.
func OnChange(producer func() *Token, consumer func()) *Subscription {
	if producer == nil || consumer == nil {
		panic("changetoken: nil producer or consumer")
	}
	s := &Subscription{producer: producer, consumer: consumer}
	s.register(producer())
	return s
}

func (s *Subscription) register(t *Token) {
	if s.isClosed() {
		return
	}

	// May run onFired synchronously if t has already fired.
	reg := t.RegisterChangeCallback(s.onFired, nil)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		reg.Unregister()
		return
	}
	// A fired registration has already handed over to a newer one.
	if !reg.done.Load() {
		s.reg = reg
	}
	s.mu.Unlock()
}

func (s *Subscription) onFired(any) {
	if s.isClosed() {
		return
	}
	s.register(s.producer())
	s.consumer()
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	reg := s.reg
	s.reg = nil
	s.mu.Unlock()

	if reg != nil {
		reg.Unregister()
	}
}
