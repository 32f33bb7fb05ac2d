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
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/configstore/cmd/importer"
	"github.com/cardinalhq/configstore/internal/logctx"
)

func init() {
	var (
		configFile string
		format     string
		replace    bool
		watch      bool
	)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load settings from a YAML or TOML file",
		Long: `Load a YAML or TOML document into the settings table in one transaction.
Nested maps are flattened into dotted keys. Use env:VARNAME as the file name to
read the document from an environment variable.

With --replace, keys missing from the document are deleted. With --watch, the
file is imported again each time it changes until the command is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && importer.IsEnvSource(configFile) {
				return errors.New("--watch needs a file, not an env: source")
			}

			ctx, cancel := handleSignals(cmd.Context())
			defer cancel()
			ctx = logctx.With(ctx, slog.String("source", configFile))

			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run := func(ctx context.Context) error {
				entries, err := importer.Load(configFile, importer.Format(format), importer.OSFileReader{})
				if err != nil {
					return err
				}
				_, err = importer.Apply(ctx, s.store, entries, replace)
				return err
			}

			if err := run(ctx); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return importer.Watch(gctx, configFile, func(ctx context.Context) {
					if err := run(ctx); err != nil {
						logctx.FromContext(ctx).Error("Failed to re-import settings", slog.Any("error", err))
					}
				})
			})
			return g.Wait()
		},
	}

	importCmd.Flags().StringVarP(&configFile, "config", "c", "", "Settings file, or env:VARNAME")
	importCmd.Flags().StringVar(&format, "format", string(importer.FormatAuto), "Document format: auto, yaml or toml")
	importCmd.Flags().BoolVar(&replace, "replace", false, "Delete keys not present in the document")
	importCmd.Flags().BoolVar(&watch, "watch", false, "Re-import whenever the file changes")
	if err := importCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(importCmd)
}
