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

// Package changetoken implements generation-based change notification.
//
// A Source always holds exactly one live Token. Raise swaps in a fresh Token
// and fires the old one, running each callback registered on it exactly once.
// A callback registered on a Token that has already fired runs immediately,
// so a subscriber racing with Raise is notified either by that Raise or by the
// next one, never both and never neither.
package changetoken

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Token represents one change generation. It starts live and transitions to
// fired at most once.
type Token struct {
	mu    sync.Mutex
	fired bool
	regs  []*Registration
}

// HasChanged reports whether the generation this token represents has ended.
func (t *Token) HasChanged() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// RegisterChangeCallback attaches callback to this token. The callback is
// invoked once with state when the token fires, or immediately if it already
// has.
func (t *Token) RegisterChangeCallback(callback func(state any), state any) *Registration {
	if callback == nil {
		panic("changetoken: nil callback")
	}

	r := &Registration{token: t, callback: callback, state: state}

	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		r.invoke()
		return r
	}
	t.regs = append(t.regs, r)
	t.mu.Unlock()

	return r
}

func (t *Token) fire() {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	regs := t.regs
	t.regs = nil
	t.mu.Unlock()

	for _, r := range regs {
		r.invoke()
	}
}

func (t *Token) remove(r *Registration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := slices.Index(t.regs, r); i >= 0 {
		t.regs = slices.Delete(t.regs, i, i+1)
	}
}

// Registration is the handle returned by RegisterChangeCallback.
type Registration struct {
	token    *Token
	callback func(any)
	state    any
	done     atomic.Bool
}

func (r *Registration) invoke() {
	if !r.done.CompareAndSwap(false, true) {
		return
	}
	r.callback(r.state)
}

// Unregister detaches the callback without invoking it. It is a no-op if the
// callback already ran or was already unregistered.
func (r *Registration) Unregister() {
	if !r.done.CompareAndSwap(false, true) {
		return
	}
	r.token.remove(r)
}

// Source owns the current Token. The zero value is ready to use and must not
// be copied after first use.
type Source struct {
	current atomic.Pointer[Token]
}

// Token returns the live token for the current generation.
func (s *Source) Token() *Token {
	if t := s.current.Load(); t != nil {
		return t
	}
	s.current.CompareAndSwap(nil, &Token{})
	return s.current.Load()
}

// Raise ends the current generation. Callbacks registered on the replaced
// token run synchronously on the calling goroutine.
func (s *Source) Raise() {
	if old := s.current.Swap(&Token{}); old != nil {
		old.fire()
	}
}
