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

// Package configprovider keeps an in-memory, case-insensitive snapshot of a
// configdb table and refreshes it whenever the table changes.
//
// Each change event waits for the reload delay and then re-reads the whole
// table. Events are not coalesced: a burst of changes produces a burst of
// reloads, and a reload that started earlier never replaces the snapshot
// installed by one that started later.
package configprovider

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cardinalhq/configstore/changetoken"
	"github.com/cardinalhq/configstore/configdb"
	"github.com/cardinalhq/configstore/internal/logctx"
)

// DefaultReloadDelay gives a multi-statement write from another process time
// to finish before the table is re-read.
const DefaultReloadDelay = 250 * time.Millisecond

// Database is the part of configdb.Store the provider reads from.
type Database interface {
	GetValues(ctx context.Context) ([]configdb.Entry, error)
	GetReloadToken() *changetoken.Token
}

// Option configures a Provider.
type Option func(*Provider)

// WithReloadDelay sets the wait between a change event and the reload.
func WithReloadDelay(d time.Duration) Option {
	return func(p *Provider) {
		if d >= 0 {
			p.reloadDelay = d
		}
	}
}

// Provider holds the last snapshot read from a Database.
type Provider struct {
	db          Database
	reloadDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	sub    *changetoken.Subscription

	loadSeq atomic.Uint64

	mu        sync.RWMutex
	data      map[string]configdb.Entry
	loaded    bool
	installed uint64

	reloadTokens changetoken.Source
	closeOnce    sync.Once
}

// New subscribes to db's changes. The snapshot is empty until Load is called
// or the first change arrives. ctx bounds background reloads.
func New(ctx context.Context, db Database, opts ...Option) *Provider {
	p := &Provider{
		db:          db,
		reloadDelay: DefaultReloadDelay,
		data:        map[string]configdb.Entry{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.sub = changetoken.OnChange(db.GetReloadToken, p.onChange)
	return p
}

// Load replaces the snapshot with the current table contents and then fires
// the provider's reload token. On error the previous snapshot is kept.
func (p *Provider) Load(ctx context.Context) error {
	seq := p.loadSeq.Add(1)
	entries, err := p.db.GetValues(ctx)
	if err != nil {
		reloadFailures.Add(ctx, 1)
		return err
	}

	ll := logctx.FromContext(ctx)
	data := make(map[string]configdb.Entry, len(entries))
	for _, e := range entries {
		folded := foldKey(e.Key)
		if prev, ok := data[folded]; ok {
			ll.Warn("Configuration keys differ only by case, keeping the later one",
				slog.String("dropped", prev.Key),
				slog.String("kept", e.Key))
		}
		data[folded] = e
	}

	p.mu.Lock()
	if seq < p.installed {
		p.mu.Unlock()
		ll.Debug("Discarding configuration read overtaken by a newer reload")
		return nil
	}
	p.data = data
	p.loaded = true
	p.installed = seq
	p.mu.Unlock()

	reloads.Add(ctx, 1)
	ll.Debug("Configuration reloaded", slog.Int("keys", len(data)))
	p.reloadTokens.Raise()
	return nil
}

func (p *Provider) onChange() {
	select {
	case <-p.ctx.Done():
		return
	case <-time.After(p.reloadDelay):
	}

	if err := p.Load(p.ctx); err != nil {
		logctx.FromContext(p.ctx).Error("Failed to reload configuration", slog.Any("error", err))
	}
}

// Get looks key up ignoring case. The value is nil for a NULL setting.
func (p *Provider) Get(key string) (*string, bool) {
	p.mu.RLock()
	e, ok := p.data[foldKey(key)]
	p.mu.RUnlock()
	if !ok || e.Value == nil {
		return nil, ok
	}
	v := *e.Value
	return &v, true
}

// Keys returns the keys of the snapshot, as stored, sorted.
func (p *Provider) Keys() []string {
	p.mu.RLock()
	keys := make([]string, 0, len(p.data))
	for _, e := range p.data {
		keys = append(keys, e.Key)
	}
	p.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Entries returns a copy of the snapshot sorted by key.
func (p *Provider) Entries() []configdb.Entry {
	p.mu.RLock()
	entries := make([]configdb.Entry, 0, len(p.data))
	for _, e := range p.data {
		if e.Value != nil {
			v := *e.Value
			e.Value = &v
		}
		entries = append(entries, e)
	}
	p.mu.RUnlock()
	slices.SortFunc(entries, func(a, b configdb.Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries
}

// Len returns the number of keys in the snapshot.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data)
}

// Loaded reports whether a Load has succeeded.
func (p *Provider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// GetReloadToken returns a token that fires after the next successful Load.
func (p *Provider) GetReloadToken() *changetoken.Token {
	return p.reloadTokens.Token()
}

// Close releases the change subscription and abandons pending reloads. It is
// safe to call more than once.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		p.sub.Close()
		p.cancel()
	})
}

func foldKey(key string) string {
	return strings.ToLower(key)
}
