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

package configdb_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/configstore/configdb"
	"github.com/cardinalhq/configstore/internal/pgfake"
)

func newTestStore(t *testing.T, opts ...configdb.StoreOption) (*configdb.Store, *pgfake.Backend) {
	t.Helper()
	backend := pgfake.New()
	store, err := configdb.NewStore(backend, "settings", opts...)
	require.NoError(t, err)
	return store, backend
}

func strPtr(s string) *string {
	return &s
}

func TestNewStore_Validation(t *testing.T) {
	tests := []struct {
		name    string
		backend configdb.Backend
		table   string
		wantErr error
	}{
		{"nil backend", nil, "settings", configdb.ErrNilBackend},
		{"empty table", pgfake.New(), "", configdb.ErrEmptyTableName},
		{"blank table", pgfake.New(), "  \t", configdb.ErrEmptyTableName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := configdb.NewStore(tt.backend, tt.table)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, store)
		})
	}
}

func TestStore_ConcurrentFirstUseCreatesTableOnce(t *testing.T) {
	store, backend := newTestStore(t)
	backend.CreateDelay = 20 * time.Millisecond

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			switch i % 3 {
			case 0:
				_, err = store.GetKeys(ctx)
			case 1:
				_, err = store.GetValues(ctx)
			default:
				err = store.CreateBatch().Set("k", "v").Run(ctx)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, backend.CreateCalls())
}

func TestStore_InitFailureIsRetried(t *testing.T) {
	store, backend := newTestStore(t)
	boom := errors.New("connection refused")
	backend.FailNextCreate(boom)

	ctx := context.Background()
	_, err := store.GetKeys(ctx)
	require.ErrorIs(t, err, boom)

	keys, err := store.GetKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 2, backend.CreateCalls())

	_, err = store.GetValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.CreateCalls())
}

func TestStore_QueryErrorsPropagate(t *testing.T) {
	store, backend := newTestStore(t)
	boom := errors.New("read timeout")
	backend.FailQueries(boom)

	_, err := store.GetKeys(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = store.GetValues(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStore_CreateBatchDoesNotTouchBackend(t *testing.T) {
	store, backend := newTestStore(t)
	batch := store.CreateBatch()
	assert.NotNil(t, batch)
	assert.Equal(t, 0, backend.CreateCalls())
	assert.Equal(t, 0, backend.BatchCalls())
}

func TestBatch_EmptyRunIsNoop(t *testing.T) {
	store, backend := newTestStore(t)
	token := store.GetReloadToken()

	require.NoError(t, store.CreateBatch().Run(context.Background()))
	assert.Equal(t, 0, backend.CreateCalls())
	assert.Equal(t, 0, backend.BatchCalls())
	assert.False(t, token.HasChanged())
}

func TestBatch_LastWriteWins(t *testing.T) {
	store, backend := newTestStore(t)

	err := store.CreateBatch().Set("a", "1").Set("a", "2").Run(context.Background())
	require.NoError(t, err)

	v, ok := backend.Row("a")
	require.True(t, ok)
	require.NotNil(t, v)
	assert.Equal(t, "2", *v)

	err = store.CreateBatch().Set("b", "x").SetNull("b").Run(context.Background())
	require.NoError(t, err)
	v, ok = backend.Row("b")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestBatch_DeleteAndSetSameKey(t *testing.T) {
	store, backend := newTestStore(t)
	backend.Put("a", strPtr("old"))

	batch := store.CreateBatch().Delete("a").Set("a", "new").Delete("a")
	assert.Equal(t, 2, batch.Len())
	require.NoError(t, batch.Run(context.Background()))

	v, ok := backend.Row("a")
	require.True(t, ok)
	assert.Equal(t, "new", *v)
}

func TestBatch_FailureIsAtomicAndNotRaised(t *testing.T) {
	store, backend := newTestStore(t)
	violation := errors.New("value too long for type character varying(256)")
	backend.Reject = func(key string) error {
		if key == "bad" {
			return violation
		}
		return nil
	}

	token := store.GetReloadToken()
	fired := 0
	token.RegisterChangeCallback(func(any) { fired++ }, nil)

	err := store.CreateBatch().Set("good", "1").Set("bad", "2").Run(context.Background())
	require.ErrorIs(t, err, violation)

	values, err := store.GetValues(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.Equal(t, 0, fired)
	assert.False(t, token.HasChanged())
}

func TestBatch_SuccessRaisesChange(t *testing.T) {
	store, _ := newTestStore(t)

	first := store.GetReloadToken()
	var calls []string
	first.RegisterChangeCallback(func(any) { calls = append(calls, "one") }, nil)
	first.RegisterChangeCallback(func(any) { calls = append(calls, "two") }, nil)

	require.NoError(t, store.CreateBatch().Set("a", "1").Run(context.Background()))
	assert.True(t, first.HasChanged())
	assert.ElementsMatch(t, []string{"one", "two"}, calls)
	assert.NotSame(t, first, store.GetReloadToken())

	require.NoError(t, store.CreateBatch().Set("a", "2").Run(context.Background()))
	assert.Len(t, calls, 2)
}

func TestStore_OnChange(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	calls := 0
	sub := store.OnChange(func() { calls++ })

	require.NoError(t, store.CreateBatch().Set("a", "1").Run(ctx))
	require.NoError(t, store.CreateBatch().Delete("a").Run(ctx))
	assert.Equal(t, 2, calls)

	sub.Close()
	sub.Close()
	require.NoError(t, store.CreateBatch().Set("a", "1").Run(ctx))
	assert.Equal(t, 2, calls)
}

func TestBatch_NotifyChannel(t *testing.T) {
	store, backend := newTestStore(t, configdb.WithNotifyChannel("settings_changed"))

	require.NoError(t, store.CreateBatch().Set("a", "1").Run(context.Background()))

	notes := backend.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "settings_changed", notes[0].Channel)
	assert.Equal(t, store.InstanceID().String(), notes[0].Payload)
}

func TestBatch_NoNotifyWithoutChannel(t *testing.T) {
	store, backend := newTestStore(t)
	require.NoError(t, store.CreateBatch().Set("a", "1").Run(context.Background()))
	assert.Empty(t, backend.Notifications())
}

func TestStore_EndToEnd(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateBatch().Set("a", "1").SetNull("b").Run(ctx))

	values, err := store.GetValues(ctx)
	require.NoError(t, err)
	sort.Slice(values, func(i, j int) bool { return values[i].Key < values[j].Key })
	require.Len(t, values, 2)
	assert.Equal(t, "a", values[0].Key)
	require.NotNil(t, values[0].Value)
	assert.Equal(t, "1", *values[0].Value)
	assert.Equal(t, "b", values[1].Key)
	assert.Nil(t, values[1].Value)

	require.NoError(t, store.CreateBatch().Delete("a").Run(ctx))

	keys, err := store.GetKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}
