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

	"github.com/spf13/cobra"
)

func init() {
	deleteCmd := &cobra.Command{
		Use:     "delete key [key...]",
		Aliases: []string{"rm"},
		Short:   "Delete settings in one transaction",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := handleSignals(cmd.Context())
			defer cancel()

			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return runDelete(ctx, s.store, args)
		},
	}

	rootCmd.AddCommand(deleteCmd)
}

func runDelete(ctx context.Context, store batchCreator, keys []string) error {
	batch := store.CreateBatch()
	for _, key := range keys {
		batch.Delete(key)
	}
	if err := batch.Run(ctx); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}
