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
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	batchesApplied        metric.Int64Counter
	batchesFailed         metric.Int64Counter
	schemaInits           metric.Int64Counter
	changesRaised         metric.Int64Counter
	notificationsReceived metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/configstore/configdb")

	var err error

	batchesApplied, err = meter.Int64Counter(
		"configstore.db.batches_applied",
		metric.WithDescription("Number of configuration batches committed"),
	)
	if err != nil {
		log.Fatalf("failed to create db.batches_applied counter: %v", err)
	}

	batchesFailed, err = meter.Int64Counter(
		"configstore.db.batches_failed",
		metric.WithDescription("Number of configuration batches rejected by the database"),
	)
	if err != nil {
		log.Fatalf("failed to create db.batches_failed counter: %v", err)
	}

	schemaInits, err = meter.Int64Counter(
		"configstore.db.schema_inits",
		metric.WithDescription("Number of times the settings table creation statement was executed"),
	)
	if err != nil {
		log.Fatalf("failed to create db.schema_inits counter: %v", err)
	}

	changesRaised, err = meter.Int64Counter(
		"configstore.db.changes_raised",
		metric.WithDescription("Number of change generations ended"),
	)
	if err != nil {
		log.Fatalf("failed to create db.changes_raised counter: %v", err)
	}

	notificationsReceived, err = meter.Int64Counter(
		"configstore.db.notifications_received",
		metric.WithDescription("Number of NOTIFY messages received on the settings channel"),
	)
	if err != nil {
		log.Fatalf("failed to create db.notifications_received counter: %v", err)
	}
}
