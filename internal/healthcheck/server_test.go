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

package healthcheck

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStarting, "starting"},
		{StatusHealthy, "healthy"},
		{StatusUnhealthy, "unhealthy"},
		{Status(999), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("HEALTH_CHECK_PORT", "")
	assert.Equal(t, 8090, GetConfigFromEnv().Port)

	t.Setenv("HEALTH_CHECK_PORT", "9090")
	assert.Equal(t, 9090, GetConfigFromEnv().Port)

	t.Setenv("HEALTH_CHECK_PORT", "invalid")
	assert.Equal(t, 8090, GetConfigFromEnv().Port)

	t.Setenv("HEALTH_CHECK_PORT", "70000")
	assert.Equal(t, 8090, GetConfigFromEnv().Port)
}

func TestNewServer_DefaultPort(t *testing.T) {
	s := NewServer(Config{})
	assert.Equal(t, 8090, s.port)
	assert.Equal(t, StatusStarting, s.GetStatus())
}

func get(t *testing.T, s *Server, path string) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(Config{Port: 1})

	code, resp := get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Healthy)

	s.SetStatus(StatusHealthy)
	code, resp = get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Healthy)
}

func TestServer_Livez(t *testing.T) {
	s := NewServer(Config{Port: 1})

	code, _ := get(t, s, "/livez")
	assert.Equal(t, http.StatusOK, code)

	s.SetStatus(StatusUnhealthy)
	code, resp := get(t, s, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Healthy)
}

func TestServer_Readyz(t *testing.T) {
	s := NewServer(Config{Port: 1})

	code, resp := get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, code, "no checks means ready")
	assert.True(t, resp.Healthy)

	loaded := false
	s.AddReadyCheck("snapshot_loaded", func() bool { return loaded })
	s.AddReadyCheck("listener_connected", func() bool { return true })

	code, resp = get(t, s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]bool{"snapshot_loaded": false, "listener_connected": true}, resp.Checks)
	assert.False(t, s.IsReady())

	loaded = true
	code, resp = get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Healthy)
	assert.True(t, s.IsReady())
}

func TestServer_StopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(Config{}).Stop())
}
