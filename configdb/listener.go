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

package configdb

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/configstore/internal/logctx"
)

// ErrNoNotifyChannel is returned by NewListener for a store created without
// WithNotifyChannel.
var ErrNoNotifyChannel = errors.New("configdb: store has no notify channel")

const defaultReconnectDelay = 5 * time.Second

// Listener turns NOTIFY messages sent by other processes into change events
// on a Store.
type Listener struct {
	pool           *pgxpool.Pool
	store          *Store
	reconnectDelay time.Duration
	connected      atomic.Bool
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithReconnectDelay sets how long to wait before reconnecting after the
// listening connection fails.
func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.reconnectDelay = d
		}
	}
}

func NewListener(pool *pgxpool.Pool, store *Store, opts ...ListenerOption) (*Listener, error) {
	if pool == nil {
		return nil, ErrNilBackend
	}
	if store.NotifyChannel() == "" {
		return nil, ErrNoNotifyChannel
	}

	l := &Listener{
		pool:           pool,
		store:          store,
		reconnectDelay: defaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Connected reports whether the listener currently holds a LISTENing
// connection.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// Run listens until ctx is cancelled, reconnecting after failures. Each time
// LISTEN succeeds, including the first, the store's change token is raised
// once, since changes committed before then were announced to nobody.
func (l *Listener) Run(ctx context.Context) error {
	ll := logctx.FromContext(ctx).With(slog.String("channel", l.store.NotifyChannel()))

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}

		ll.Warn("Configuration listener disconnected",
			slog.Any("error", err),
			slog.Duration("retryIn", l.reconnectDelay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	// A LISTENing connection must not go back to the pool.
	conn := pooled.Hijack()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.store.NotifyChannel()}.Sanitize()); err != nil {
		return err
	}

	l.connected.Store(true)
	defer l.connected.Store(false)

	logctx.FromContext(ctx).Info("Listening for configuration changes",
		slog.String("channel", l.store.NotifyChannel()))

	l.store.raiseChanged()

	self := l.store.InstanceID().String()
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		notificationsReceived.Add(ctx, 1)
		if n.Payload == self {
			continue
		}
		l.store.raiseChanged()
	}
}
