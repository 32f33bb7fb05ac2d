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
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/configstore/internal/logctx"
)

// Batch collects upserts and deletes and applies them in one transaction.
// A Batch is single-use and not safe for concurrent use.
type Batch struct {
	store   *Store
	setters map[string]*string
	deletes []string
	deleted mapset.Set[string]
}

func newBatch(store *Store) *Batch {
	return &Batch{
		store:   store,
		setters: make(map[string]*string),
		deleted: mapset.NewThreadUnsafeSet[string](),
	}
}

// Set records an upsert of key to value. A later Set of the same key wins.
func (b *Batch) Set(key, value string) *Batch {
	b.setters[key] = &value
	return b
}

// SetNull records an upsert of key with a NULL value.
func (b *Batch) SetNull(key string) *Batch {
	b.setters[key] = nil
	return b
}

// Delete records the removal of key.
func (b *Batch) Delete(key string) *Batch {
	if b.deleted.Add(key) {
		b.deletes = append(b.deletes, key)
	}
	return b
}

// Len returns the number of pending operations.
func (b *Batch) Len() int {
	return len(b.setters) + len(b.deletes)
}

// Run applies the batch. Deletes are queued before upserts, so a key that is
// both deleted and set ends up set. Either every operation is applied and the
// store's change token fires, or none is and the error is returned.
func (b *Batch) Run(ctx context.Context) error {
	if b.Len() == 0 {
		return nil
	}

	if err := b.store.initialize(ctx); err != nil {
		return err
	}

	cmds := b.store.commands
	batch := &pgx.Batch{}
	for _, key := range b.deletes {
		batch.Queue(cmds.deleteItem, key)
	}
	for key, value := range b.setters {
		batch.Queue(cmds.upsertItem, key, value)
	}
	if ch := b.store.notifyChannel; ch != "" {
		batch.Queue(cmds.notify, ch, b.store.instanceID.String())
	}

	// With no explicit transaction control the whole batch runs in one
	// implicit transaction.
	if err := b.store.db.SendBatch(ctx, batch).Close(); err != nil {
		batchesFailed.Add(ctx, 1)
		logctx.FromContext(ctx).Warn("Configuration batch rejected",
			slog.Int("sets", len(b.setters)),
			slog.Int("deletes", len(b.deletes)),
			slog.Any("error", err))
		return err
	}

	batchesApplied.Add(ctx, 1)
	b.store.raiseChanged()
	return nil
}
