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
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/configstore/configdb"
)

func init() {
	var nulls []string

	setCmd := &cobra.Command{
		Use:   "set key=value [key=value...]",
		Short: "Set settings in one transaction",
		Example: `  configstore set log.level=debug feature.beta=true
  configstore set --null feature.override`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(nulls) == 0 {
				return fmt.Errorf("nothing to set")
			}

			ctx, cancel := handleSignals(cmd.Context())
			defer cancel()

			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return runSet(ctx, s.store, args, nulls)
		},
	}

	setCmd.Flags().StringArrayVar(&nulls, "null", nil, "Key to set to NULL (repeatable)")

	rootCmd.AddCommand(setCmd)
}

type batchCreator interface {
	CreateBatch() *configdb.Batch
}

func runSet(ctx context.Context, store batchCreator, assignments []string, nulls []string) error {
	batch := store.CreateBatch()
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid assignment %q, expected key=value", a)
		}
		batch.Set(key, value)
	}
	for _, key := range nulls {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("empty key in --null")
		}
		batch.SetNull(key)
	}

	if err := batch.Run(ctx); err != nil {
		return fmt.Errorf("failed to set settings: %w", err)
	}
	return nil
}
