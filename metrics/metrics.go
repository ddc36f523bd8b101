// Package metrics counts engine events and reports their rates.
package metrics

import (
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
)

func init() {
	// Meters and counters are no-ops without this global setting.
	gethmetrics.Enabled = true
}

// EventMeterPrefix prefixes the meter of each engine event kind,
// eg. "event/position".
const EventMeterPrefix = "event/"

func NewRegistry() gethmetrics.Registry {
	return gethmetrics.NewRegistry()
}
