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

// Package configdb stores application settings in a PostgreSQL table and
// broadcasts a change notification after every applied batch.
//
// The table is created on first use. Reads go straight to the database;
// callers that want an in-memory snapshot should use configprovider.
package configdb

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/configstore/changetoken"
	"github.com/cardinalhq/configstore/internal/logctx"
)

var (
	ErrNilBackend     = errors.New("configdb: backend is nil")
	ErrEmptyTableName = errors.New("configdb: table name is empty")
)

// Store is a settings table with lazy schema creation and change broadcast.
type Store struct {
	db            Backend
	commands      commandTexts
	notifyChannel string
	instanceID    uuid.UUID

	tokens changetoken.Source

	initialized atomic.Bool
	initMu      sync.Mutex
}

type storeOptions struct {
	schema        string
	notifyChannel string
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

// WithSchema places the settings table in the named schema.
func WithSchema(schema string) StoreOption {
	return func(o *storeOptions) {
		o.schema = schema
	}
}

// WithNotifyChannel makes every applied batch send a NOTIFY on channel so
// other processes running a Listener see the change.
func WithNotifyChannel(channel string) StoreOption {
	return func(o *storeOptions) {
		o.notifyChannel = channel
	}
}

// NewStore creates a Store over db using the named table. Nothing is sent to
// the database until the first read or batch.
func NewStore(db Backend, tableName string, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, ErrNilBackend
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, ErrEmptyTableName
	}

	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &Store{
		db:            db,
		commands:      newCommandTexts(tableName, o.schema),
		notifyChannel: strings.TrimSpace(o.notifyChannel),
		instanceID:    uuid.New(),
	}, nil
}

// InstanceID identifies this store in NOTIFY payloads.
func (s *Store) InstanceID() uuid.UUID {
	return s.instanceID
}

// NotifyChannel returns the configured NOTIFY channel, or "".
func (s *Store) NotifyChannel() string {
	return s.notifyChannel
}

// GetKeys returns every key in the table, in no particular order.
func (s *Store) GetKeys(ctx context.Context) ([]string, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, s.commands.selectKeys)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// GetValues returns every key with its value, in no particular order.
func (s *Store) GetValues(ctx context.Context) ([]Entry, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, s.commands.selectValues)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Key, &e.Value)
		return e, err
	})
}

// CreateBatch returns an empty batch bound to this store.
func (s *Store) CreateBatch() *Batch {
	return newBatch(s)
}

// GetReloadToken returns the token for the current change generation.
func (s *Store) GetReloadToken() *changetoken.Token {
	return s.tokens.Token()
}

// OnChange calls handler after every change until the subscription is closed.
// Changes raised from different goroutines may call handler concurrently.
func (s *Store) OnChange(handler func()) *changetoken.Subscription {
	return changetoken.OnChange(s.tokens.Token, handler)
}

func (s *Store) raiseChanged() {
	changesRaised.Add(context.Background(), 1)
	s.tokens.Raise()
}

// initialize creates the table once per Store. A failed attempt leaves the
// store uninitialized so the next caller retries.
func (s *Store) initialize(ctx context.Context) error {
	if s.initialized.Load() {
		return nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized.Load() {
		return nil
	}

	if _, err := s.db.Exec(ctx, s.commands.createTable); err != nil {
		logctx.FromContext(ctx).Error("Failed to create settings table",
			slog.String("table", s.commands.table),
			slog.Any("error", err))
		return err
	}
	schemaInits.Add(ctx, 1)
	s.initialized.Store(true)
	return nil
}
