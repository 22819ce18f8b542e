package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timzifer/threadgen/compiler"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/telemetry"
)

func newTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "prometheus":
		collector, err := telemetry.NewPrometheusCollector(nil)
		if err != nil {
			return nil, err
		}
		return collector, nil
	default:
		return telemetry.Noop(), fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}

func outcome(err error) string {
	if err == nil {
		return telemetry.OutcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return telemetry.OutcomeCancelled
	}
	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		return telemetry.OutcomeConfig
	}
	switch cerr.Kind {
	case compiler.KindValidation:
		return telemetry.OutcomeValidation
	case compiler.KindPlatform:
		return telemetry.OutcomePlatform
	default:
		return telemetry.OutcomeConfig
	}
}
