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

package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	"github.com/orlangure/gnomock/preset/postgres"

	"github.com/cardinalhq/configstore/configdb"
)

const (
	containerUser     = "configstore"
	containerPassword = "configstore"
	containerDB       = "configstore"
)

var (
	serverOnce      sync.Once
	serverURL       string
	serverErr       error
	serverContainer *gnomock.Container
)

// baseURL returns the URL of the server test databases are created on. When
// CONFIGDB_URL is set that server is used, otherwise a PostgreSQL container
// is started on first use and shared by every test in the package.
func baseURL() (string, error) {
	serverOnce.Do(func() {
		if u := os.Getenv("CONFIGDB_URL"); u != "" {
			serverURL = u
			return
		}

		p := postgres.Preset(
			postgres.WithUser(containerUser, containerPassword),
			postgres.WithDatabase(containerDB),
		)
		container, err := gnomock.Start(p)
		if err != nil {
			serverErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}
		serverContainer = container
		serverURL = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
			containerUser, containerPassword, container.DefaultAddress(), containerDB)
	})
	return serverURL, serverErr
}

// StopContainers stops the shared container, if one was started. Call it from
// TestMain after m.Run.
func StopContainers() {
	if serverContainer == nil {
		return
	}
	if err := gnomock.Stop(serverContainer); err != nil {
		slog.Error("Failed to stop postgres container", slog.Any("error", err))
	}
}

// SetupTestConfigDB creates a clean database for the test and returns a pool
// connected to it. The database is dropped by t.Cleanup.
func SetupTestConfigDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	dbName := fmt.Sprintf("test_configstore_%d_%d", time.Now().Unix(), rand.Intn(10000))

	base, err := baseURL()
	if err != nil {
		t.Fatalf("No test database server: %v", err)
	}

	basePool, err := configdb.NewConnectionPool(ctx, base)
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	if _, err := basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	testURL, err := withDatabase(base, dbName)
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to build test database URL: %v", err)
	}
	testPool, err := configdb.NewConnectionPool(ctx, testURL)
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		testPool.Close()

		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	return testPool
}

// NewTestStore returns a store over a fresh test database.
func NewTestStore(t *testing.T, opts ...configdb.StoreOption) (*configdb.Store, *pgxpool.Pool) {
	t.Helper()
	pool := SetupTestConfigDB(t)
	store, err := configdb.NewStore(pool, "settings", opts...)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, pool
}

func withDatabase(raw, dbName string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
