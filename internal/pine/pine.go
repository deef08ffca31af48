// Package pine generates Pine Script v5 code for exporting strategies
// back to the charting platform.
package pine

import (
	"fmt"
	"os"
	"path/filepath"
)

// HeaderOptions configures the strategy() declaration.
type HeaderOptions struct {
	InitialCapital  float64
	CommissionValue float64
	QtyValue        float64
}

// DefaultHeaderOptions mirrors the tester's default engine settings.
func DefaultHeaderOptions() HeaderOptions {
	return HeaderOptions{
		InitialCapital:  100_000,
		CommissionValue: 0.1,
		QtyValue:        100,
	}
}

// Header generates the standard Pine Script v5 header with a strategy
// declaration matching the engine's capital and commission settings.
func Header(strategyName string, opts HeaderOptions) string {
	return fmt.Sprintf(
		"//@version=5\n"+
			"strategy(%q, overlay=true, "+
			"initial_capital=%.0f, "+
			"commission_type=strategy.commission.percent, "+
			"commission_value=%g, "+
			"default_qty_type=strategy.percent_of_equity, "+
			"default_qty_value=%g)\n",
		strategyName, opts.InitialCapital, opts.CommissionValue, opts.QtyValue,
	)
}

// Save writes Pine Script code to a file, creating parent directories.
func Save(code, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return fmt.Errorf("failed to write pine script: %w", err)
	}
	return nil
}
