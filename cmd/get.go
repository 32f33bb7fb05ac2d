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
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/configstore/configdb"
)

func init() {
	var output string

	getCmd := &cobra.Command{
		Use:   "get [key...]",
		Short: "Print settings",
		Long: `Print the named settings, or every setting when no key is given.
Keys are matched ignoring case. NULL values print as <null> in text output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := handleSignals(cmd.Context())
			defer cancel()

			s, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return printValues(ctx, s.store, args, output, cmd.OutOrStdout())
		},
	}

	getCmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or yaml")

	rootCmd.AddCommand(getCmd)
}

type valueLister interface {
	GetValues(ctx context.Context) ([]configdb.Entry, error)
}

func printValues(ctx context.Context, store valueLister, keys []string, output string, w io.Writer) error {
	if output != "text" && output != "yaml" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	entries, err := store.GetValues(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	selected, missing := selectEntries(entries, keys)
	slices.SortFunc(selected, func(a, b configdb.Entry) int {
		return strings.Compare(a.Key, b.Key)
	})

	if output == "yaml" {
		doc := make(map[string]*string, len(selected))
		for _, e := range selected {
			doc[e.Key] = e.Value
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else {
		for _, e := range selected {
			value := "<null>"
			if e.Value != nil {
				value = *e.Value
			}
			if _, err := fmt.Fprintf(w, "%s=%s\n", e.Key, value); err != nil {
				return err
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("settings not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

func selectEntries(entries []configdb.Entry, keys []string) (selected []configdb.Entry, missing []string) {
	if len(keys) == 0 {
		return entries, nil
	}

	byKey := make(map[string]configdb.Entry, len(entries))
	for _, e := range entries {
		byKey[strings.ToLower(e.Key)] = e
	}
	for _, key := range keys {
		e, ok := byKey[strings.ToLower(key)]
		if !ok {
			missing = append(missing, key)
			continue
		}
		selected = append(selected, e)
	}
	return selected, missing
}
