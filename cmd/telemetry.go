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
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
)

var myInstanceID = uuid.New()

func logLevel() *slog.HandlerOptions {
	if os.Getenv("DEBUG") != "" || os.Getenv("CONFIGSTORE_DEBUG") != "" {
		return &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	return nil
}

// setupLogging installs the default text logger used by the short-lived
// commands. Logs go to w so command output on stdout stays parseable.
func setupLogging(w io.Writer) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, logLevel())))
}

func otlpEnabled() bool {
	return os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true"
}

// setupTelemetry prepares logging and, when enabled, the OpenTelemetry SDK for
// long-running commands. The returned context is cancelled on SIGINT/SIGTERM.
func setupTelemetry(parent context.Context, servicename string, w io.Writer) (context.Context, func() error, error) {
	doneCtx, doneCancel := handleSignals(parent)

	f := func() error {
		doneCancel()
		return nil
	}

	opts := logLevel()

	if !otlpEnabled() {
		slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)).With(
			slog.String("service", servicename),
			slog.String("instanceID", myInstanceID.String()),
		))
		return doneCtx, f, nil
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(
		slog.NewTextHandler(w, opts),
		otelslog.NewHandler(servicename),
	)).With(
		slog.String("service", servicename),
		slog.String("instanceID", myInstanceID.String()),
	))
	slog.Info("OpenTelemetry exporting enabled")

	otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
	if err != nil {
		doneCancel()
		return parent, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
	}

	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		slog.Warn("failed to start runtime metrics", slog.Any("error", err))
	}
	if err := host.Start(); err != nil {
		slog.Warn("failed to start host metrics", slog.Any("error", err))
	}

	f = func() error {
		defer doneCancel()
		slog.Info("Shutting down OpenTelemetry SDK")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return otelShutdown(ctx)
	}

	return doneCtx, f, nil
}
