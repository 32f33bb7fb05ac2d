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

package pgfake

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rows struct {
	data   [][]any
	pos    int
	closed bool
}

var _ pgx.Rows = (*rows)(nil)

func (r *rows) Close()                                       { r.closed = true }
func (r *rows) Err() error                                   { return nil }
func (r *rows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rows) RawValues() [][]byte                          { return nil }
func (r *rows) Conn() *pgx.Conn                              { return nil }

func (r *rows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *rows) Values() ([]any, error) {
	if r.pos == 0 {
		return nil, fmt.Errorf("pgfake: Values called before Next")
	}
	return r.data[r.pos-1], nil
}

func (r *rows) Scan(dest ...any) error {
	row, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(row) {
		return fmt.Errorf("pgfake: scan wants %d targets, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			s, ok := row[i].(string)
			if !ok {
				return fmt.Errorf("pgfake: cannot scan %T into *string", row[i])
			}
			*d = s
		case **string:
			v, _ := row[i].(*string)
			if v == nil {
				*d = nil
				continue
			}
			s := *v
			*d = &s
		default:
			return fmt.Errorf("pgfake: unsupported scan target %T", d)
		}
	}
	return nil
}

type batchResults struct {
	err error
}

var _ pgx.BatchResults = (*batchResults)(nil)

func (br *batchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, br.err }
func (br *batchResults) Query() (pgx.Rows, error)         { return &rows{}, br.err }
func (br *batchResults) QueryRow() pgx.Row                { return errRow{br.err} }
func (br *batchResults) Close() error                     { return br.err }

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }
