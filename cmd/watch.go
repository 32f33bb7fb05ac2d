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
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/configstore/changetoken"
	"github.com/cardinalhq/configstore/configdb"
	"github.com/cardinalhq/configstore/configprovider"
	"github.com/cardinalhq/configstore/internal/healthcheck"
	"github.com/cardinalhq/configstore/internal/logctx"
)

func init() {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the settings table and log every reload",
		Long: `Keep a settings snapshot loaded, reloading it whenever this or another
process changes the table, and log each reload. Health endpoints are served on
HEALTH_CHECK_PORT (default 8090).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd)
		},
	}

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command) error {
	servicename := "configstore-watch"

	ctx, doneFx, err := setupTelemetry(cmd.Context(), servicename, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	ll := slog.Default().With(slog.String("component", "watch"))
	ctx = logctx.WithLogger(ctx, ll)

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	provider := configprovider.New(ctx, s.store,
		configprovider.WithReloadDelay(s.cfg.Provider.ReloadDelay))
	defer provider.Close()

	reloads := changetoken.OnChange(provider.GetReloadToken, func() {
		ll.Info("Settings reloaded", slog.Int("keys", provider.Len()))
		for _, e := range provider.Entries() {
			ll.Debug("Setting", slog.String("key", e.Key), slog.Any("value", e.Value))
		}
	})
	defer reloads.Close()

	health := healthcheck.NewServer(healthcheck.GetConfigFromEnv())
	health.AddReadyCheck("snapshot_loaded", provider.Loaded)

	var listener *configdb.Listener
	if s.store.NotifyChannel() != "" {
		listener, err = configdb.NewListener(s.pool, s.store,
			configdb.WithReconnectDelay(s.cfg.Listener.ReconnectDelay))
		if err != nil {
			return err
		}
		health.AddReadyCheck("listener_connected", listener.Connected)
	} else {
		ll.Warn("No notify channel configured; only local changes will trigger reloads")
	}

	var workers []func(context.Context) error
	if listener != nil {
		workers = append(workers, listener.Run)
	}

	load := func(ctx context.Context) error {
		if err := provider.Load(ctx); err != nil {
			health.SetStatus(healthcheck.StatusUnhealthy)
			return fmt.Errorf("failed to load initial settings: %w", err)
		}
		health.SetStatus(healthcheck.StatusHealthy)
		return nil
	}

	err = runWatchGroup(ctx, health.Start, load, workers...)
	if err != nil && ctx.Err() == nil {
		return err
	}
	ll.Info("Watch stopped")
	return nil
}

// runWatchGroup runs serve for the whole lifetime of the group, then load,
// then the workers. If load fails, serve is stopped and joined before the
// error is returned.
func runWatchGroup(ctx context.Context, serve, load func(context.Context) error, workers ...func(context.Context) error) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return serve(gctx)
	})

	if err := load(gctx); err != nil {
		stop()
		_ = g.Wait()
		return err
	}

	for _, w := range workers {
		g.Go(func() error {
			return w(gctx)
		})
	}
	return g.Wait()
}
