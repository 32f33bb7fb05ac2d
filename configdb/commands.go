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

package configdb

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// commandTexts holds the statements for one settings table.
type commandTexts struct {
	table        string
	createTable  string
	selectKeys   string
	selectValues string
	deleteItem   string
	upsertItem   string
	notify       string
}

func newCommandTexts(tableName, schemaName string) commandTexts {
	ident := pgx.Identifier{tableName}
	if strings.TrimSpace(schemaName) != "" {
		ident = pgx.Identifier{schemaName, tableName}
	}
	table := ident.Sanitize()

	return commandTexts{
		table: table,
		createTable: `CREATE TABLE IF NOT EXISTS ` + table + ` (
	key   varchar(256) PRIMARY KEY,
	value text
)`,
		selectKeys:   `SELECT key FROM ` + table,
		selectValues: `SELECT key, value FROM ` + table,
		deleteItem:   `DELETE FROM ` + table + ` WHERE key = $1`,
		upsertItem: `INSERT INTO ` + table + ` (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		notify: `SELECT pg_notify($1, $2)`,
	}
}
