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

package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/configstore/config"
	"github.com/cardinalhq/configstore/configdb"
	"github.com/cardinalhq/configstore/internal/pgfake"
)

func strPtr(s string) *string {
	return &s
}

func newTestStore(t *testing.T) (*configdb.Store, *pgfake.Backend) {
	t.Helper()
	db := pgfake.New()
	store, err := configdb.NewStore(db, "settings")
	require.NoError(t, err)
	return store, db
}

func TestRunSet(t *testing.T) {
	t.Run("assignments and nulls", func(t *testing.T) {
		store, db := newTestStore(t)

		err := runSet(context.Background(), store, []string{"a=1", "b=x=y", "c="}, []string{"d"})
		require.NoError(t, err)

		v, ok := db.Row("a")
		require.True(t, ok)
		assert.Equal(t, "1", *v)
		v, _ = db.Row("b")
		assert.Equal(t, "x=y", *v)
		v, _ = db.Row("c")
		assert.Equal(t, "", *v)
		v, ok = db.Row("d")
		assert.True(t, ok)
		assert.Nil(t, v)
		assert.Equal(t, 1, db.BatchCalls())
	})

	t.Run("invalid assignment writes nothing", func(t *testing.T) {
		store, db := newTestStore(t)

		err := runSet(context.Background(), store, []string{"a=1", "broken"}, nil)
		assert.ErrorContains(t, err, `invalid assignment "broken"`)
		assert.Equal(t, 0, db.BatchCalls())
		assert.Equal(t, 0, db.Len())
	})

	t.Run("empty key", func(t *testing.T) {
		store, _ := newTestStore(t)
		assert.Error(t, runSet(context.Background(), store, []string{"=1"}, nil))
		assert.Error(t, runSet(context.Background(), store, nil, []string{" "}))
	})

	t.Run("backend failure", func(t *testing.T) {
		store, db := newTestStore(t)
		db.Reject = func(key string) error { return errors.New("value too long") }

		err := runSet(context.Background(), store, []string{"a=1"}, nil)
		assert.ErrorContains(t, err, "value too long")
	})
}

func TestRunDelete(t *testing.T) {
	store, db := newTestStore(t)
	db.Put("a", strPtr("1"))
	db.Put("b", strPtr("2"))

	require.NoError(t, runDelete(context.Background(), store, []string{"a", "missing"}))

	_, ok := db.Row("a")
	assert.False(t, ok)
	_, ok = db.Row("b")
	assert.True(t, ok)
}

func TestPrintKeys(t *testing.T) {
	store, db := newTestStore(t)
	db.Put("b", strPtr("2"))
	db.Put("a", strPtr("1"))

	var out bytes.Buffer
	require.NoError(t, printKeys(context.Background(), store, &out))
	assert.Equal(t, "a\nb\n", out.String())
}

func TestPrintValues(t *testing.T) {
	store, db := newTestStore(t)
	db.Put("Log.Level", strPtr("debug"))
	db.Put("feature", nil)

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printValues(context.Background(), store, nil, "text", &out))
		assert.Equal(t, "Log.Level=debug\nfeature=<null>\n", out.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printValues(context.Background(), store, nil, "yaml", &out))
		assert.Equal(t, "Log.Level: debug\nfeature: null\n", out.String())
	})

	t.Run("selected keys ignore case", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printValues(context.Background(), store, []string{"log.level"}, "text", &out))
		assert.Equal(t, "Log.Level=debug\n", out.String())
	})

	t.Run("missing keys", func(t *testing.T) {
		var out bytes.Buffer
		err := printValues(context.Background(), store, []string{"feature", "nope"}, "text", &out)
		assert.ErrorContains(t, err, "settings not found: nope")
		assert.Equal(t, "feature=<null>\n", out.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		var out bytes.Buffer
		err := printValues(context.Background(), store, nil, "json", &out)
		assert.ErrorContains(t, err, "unsupported output format")
	})
}

func TestApplyFlagOverrides(t *testing.T) {
	saved := tableFlag
	t.Cleanup(func() { tableFlag = saved })

	c := &cobra.Command{Use: "test"}
	c.Flags().StringVar(&tableFlag, "table", "", "")
	c.Flags().StringVar(&schemaFlag, "schema", "", "")
	c.Flags().StringVar(&notifyChannelFlag, "notify-channel", "", "")
	require.NoError(t, c.Flags().Set("table", "app_settings"))

	cfg := config.DefaultConfig()
	cfg.Store.Schema = "public"
	applyFlagOverrides(c, cfg)

	assert.Equal(t, "app_settings", cfg.Store.Table)
	assert.Equal(t, "public", cfg.Store.Schema)
	assert.Equal(t, config.DefaultConfig().Store.NotifyChannel, cfg.Store.NotifyChannel)
}
