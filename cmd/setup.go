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
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/configstore/config"
	"github.com/cardinalhq/configstore/configdb"
)

// session is an open settings store plus the pool behind it.
type session struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	store *configdb.Store
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides lets explicitly set command line flags win over the
// environment and config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("table") {
		cfg.Store.Table = tableFlag
	}
	if flags.Changed("schema") {
		cfg.Store.Schema = schemaFlag
	}
	if flags.Changed("notify-channel") {
		cfg.Store.NotifyChannel = notifyChannelFlag
	}
}

func storeOptions(cfg *config.Config) []configdb.StoreOption {
	return []configdb.StoreOption{
		configdb.WithSchema(cfg.Store.Schema),
		configdb.WithNotifyChannel(cfg.Store.NotifyChannel),
	}
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	pool, err := configdb.ConnectToConfigDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to configdb: %w", err)
	}

	store, err := configdb.NewStore(pool, cfg.Store.Table, storeOptions(cfg)...)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &session{cfg: cfg, pool: pool, store: store}, nil
}

func (s *session) Close() {
	s.pool.Close()
}
