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
	"os"

	"github.com/spf13/cobra"
)

var (
	tableFlag         string
	schemaFlag        string
	notifyChannelFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "configstore",
	Short: "Manage application settings stored in PostgreSQL",
	Long: `Read, write and watch the key/value settings table that applications load
through configprovider. Every write is applied as one transaction and announced
to other processes with NOTIFY.

The database is selected with CONFIGDB_URL, or CONFIGDB_HOST, CONFIGDB_PORT,
CONFIGDB_USER, CONFIGDB_PASSWORD, CONFIGDB_DBNAME and CONFIGDB_SSLMODE.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&tableFlag, "table", "", "Settings table name (default from CONFIGSTORE_STORE_TABLE)")
	flags.StringVar(&schemaFlag, "schema", "", "Schema holding the settings table")
	flags.StringVar(&notifyChannelFlag, "notify-channel", "", "NOTIFY channel announcing changes; empty string disables")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
