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

// Package pgfake is an in-memory stand-in for the PostgreSQL settings table,
// implementing configdb.Backend for unit tests.
//
// Statements are recognised by their leading keywords, so it only understands
// the statements configdb issues. Batches are applied to a copy of the table
// and committed only when every statement succeeds.
package pgfake

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUndefinedTable is returned for reads and writes before the table exists.
var ErrUndefinedTable = errors.New(`pgfake: relation "settings" does not exist`)

// Notification is a pg_notify call made inside a committed batch.
type Notification struct {
	Channel string
	Payload string
}

// Backend is a fake settings database.
type Backend struct {
	// CreateDelay slows down CREATE TABLE so concurrent callers overlap.
	CreateDelay time.Duration
	// Reject, when set, is consulted for every upserted or deleted key; a
	// non-nil result fails the whole batch.
	Reject func(key string) error

	createCalls atomic.Int32
	batchCalls  atomic.Int32

	mu            sync.Mutex
	created       bool
	rows          map[string]*string
	createErrs    []error
	queryErr      error
	notifications []Notification
}

func New() *Backend {
	return &Backend{rows: make(map[string]*string)}
}

// FailNextCreate makes the next CREATE TABLE return err.
func (b *Backend) FailNextCreate(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createErrs = append(b.createErrs, err)
}

// FailQueries makes every SELECT return err until called with nil.
func (b *Backend) FailQueries(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queryErr = err
}

// CreateCalls returns how many CREATE TABLE statements were executed.
func (b *Backend) CreateCalls() int {
	return int(b.createCalls.Load())
}

// BatchCalls returns how many batches were sent.
func (b *Backend) BatchCalls() int {
	return int(b.batchCalls.Load())
}

// Put writes a row directly, as another process would.
func (b *Backend) Put(key string, value *string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = true
	b.rows[key] = value
}

// Row returns the stored value for key.
func (b *Backend) Row(key string) (*string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.rows[key]
	return v, ok
}

// Len returns the number of stored rows.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Notifications returns every committed pg_notify call.
func (b *Backend) Notifications() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.notifications)
}

func (b *Backend) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if !strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS") {
		return pgconn.CommandTag{}, fmt.Errorf("pgfake: unsupported exec %q", sql)
	}

	b.createCalls.Add(1)
	if b.CreateDelay > 0 {
		select {
		case <-ctx.Done():
			return pgconn.CommandTag{}, ctx.Err()
		case <-time.After(b.CreateDelay):
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.createErrs) > 0 {
		err := b.createErrs[0]
		b.createErrs = b.createErrs[1:]
		return pgconn.CommandTag{}, err
	}
	b.created = true
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (b *Backend) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queryErr != nil {
		return nil, b.queryErr
	}
	if !b.created {
		return nil, ErrUndefinedTable
	}

	keys := slices.Sorted(maps.Keys(b.rows))
	data := make([][]any, 0, len(keys))
	switch {
	case strings.HasPrefix(sql, "SELECT key, value FROM"):
		for _, k := range keys {
			data = append(data, []any{k, b.rows[k]})
		}
	case strings.HasPrefix(sql, "SELECT key FROM"):
		for _, k := range keys {
			data = append(data, []any{k})
		}
	default:
		return nil, fmt.Errorf("pgfake: unsupported query %q", sql)
	}
	return &rows{data: data}, nil
}

func (b *Backend) SendBatch(_ context.Context, batch *pgx.Batch) pgx.BatchResults {
	b.batchCalls.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.created {
		return &batchResults{err: ErrUndefinedTable}
	}

	staged := maps.Clone(b.rows)
	var notes []Notification
	for i, q := range batch.QueuedQueries {
		if err := b.apply(staged, &notes, q); err != nil {
			return &batchResults{err: fmt.Errorf("statement %d: %w", i, err)}
		}
	}

	b.rows = staged
	b.notifications = append(b.notifications, notes...)
	return &batchResults{}
}

func (b *Backend) apply(staged map[string]*string, notes *[]Notification, q *pgx.QueuedQuery) error {
	switch {
	case strings.HasPrefix(q.SQL, "DELETE FROM"):
		key, err := stringArg(q.Arguments, 0)
		if err != nil {
			return err
		}
		if err := b.reject(key); err != nil {
			return err
		}
		delete(staged, key)
	case strings.HasPrefix(q.SQL, "INSERT INTO"):
		key, err := stringArg(q.Arguments, 0)
		if err != nil {
			return err
		}
		if err := b.reject(key); err != nil {
			return err
		}
		if len(q.Arguments) != 2 {
			return fmt.Errorf("pgfake: upsert wants 2 arguments, got %d", len(q.Arguments))
		}
		value, ok := q.Arguments[1].(*string)
		if !ok {
			return fmt.Errorf("pgfake: upsert value is %T, want *string", q.Arguments[1])
		}
		if value != nil {
			v := *value
			value = &v
		}
		staged[key] = value
	case strings.HasPrefix(q.SQL, "SELECT pg_notify"):
		channel, err := stringArg(q.Arguments, 0)
		if err != nil {
			return err
		}
		payload, err := stringArg(q.Arguments, 1)
		if err != nil {
			return err
		}
		*notes = append(*notes, Notification{Channel: channel, Payload: payload})
	default:
		return fmt.Errorf("pgfake: unsupported batch statement %q", q.SQL)
	}
	return nil
}

func (b *Backend) reject(key string) error {
	if b.Reject == nil {
		return nil
	}
	return b.Reject(key)
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("pgfake: missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("pgfake: argument %d is %T, want string", i, args[i])
	}
	return s, nil
}
