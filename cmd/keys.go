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
	"io"
	"slices"

	"github.com/spf13/cobra"
)

func init() {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List every settings key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := handleSignals(cmd.Context())
			defer cancel()

			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return printKeys(ctx, s.store, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(keysCmd)
}

type keyLister interface {
	GetKeys(ctx context.Context) ([]string, error)
}

func printKeys(ctx context.Context, store keyLister, w io.Writer) error {
	keys, err := store.GetKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if _, err := fmt.Fprintln(w, key); err != nil {
			return err
		}
	}
	return nil
}
