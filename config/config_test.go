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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CONFIGSTORE_STORE_TABLE", "app_settings")
	t.Setenv("CONFIGSTORE_STORE_SCHEMA", "app")
	t.Setenv("CONFIGSTORE_STORE_NOTIFY_CHANNEL", "app_settings_changed")
	t.Setenv("CONFIGSTORE_PROVIDER_RELOAD_DELAY", "1s")
	t.Setenv("CONFIGSTORE_LISTENER_RECONNECT_DELAY", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "app_settings", cfg.Store.Table)
	require.Equal(t, "app", cfg.Store.Schema)
	require.Equal(t, "app_settings_changed", cfg.Store.NotifyChannel)
	require.Equal(t, time.Second, cfg.Provider.ReloadDelay)
	require.Equal(t, 30*time.Second, cfg.Listener.ReconnectDelay)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Store.Table = "  "
	cfg.Provider.ReloadDelay = -time.Second
	cfg.Listener.ReconnectDelay = 0
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "store.table")
	require.Contains(t, err.Error(), "provider.reload_delay")
	require.Contains(t, err.Error(), "listener.reconnect_delay")
}
