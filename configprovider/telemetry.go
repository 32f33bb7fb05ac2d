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

package configprovider

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	reloads        metric.Int64Counter
	reloadFailures metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/configstore/configprovider")

	var err error

	reloads, err = meter.Int64Counter(
		"configstore.provider.reloads",
		metric.WithDescription("Number of successful snapshot reloads"),
	)
	if err != nil {
		log.Fatalf("failed to create provider.reloads counter: %v", err)
	}

	reloadFailures, err = meter.Int64Counter(
		"configstore.provider.reload_failures",
		metric.WithDescription("Number of snapshot reloads that failed to read the database"),
	)
	if err != nil {
		log.Fatalf("failed to create provider.reload_failures counter: %v", err)
	}
}
