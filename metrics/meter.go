package metrics

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catdrive/common"
)

// RateLogger logs the count and one-minute rate of every event meter
// in a registry on an interval.
type RateLogger struct {
	reg      gethmetrics.Registry
	interval time.Duration
	logger   *slog.Logger
	started  time.Time

	ticker *time.Ticker
	quit   chan struct{}
	once   sync.Once
}

func NewRateLogger(reg gethmetrics.Registry, interval time.Duration) *RateLogger {
	return &RateLogger{
		reg:      reg,
		interval: interval,
		logger:   slog.With("d", "meter"),
		quit:     make(chan struct{}),
	}
}

func (rl *RateLogger) Start() {
	rl.started = time.Now()
	rl.ticker = time.NewTicker(rl.interval)
	go rl.run()
}

func (rl *RateLogger) run() {
	for {
		select {
		case <-rl.quit:
			return
		case <-rl.ticker.C:
			rl.log()
		}
	}
}

// Rates returns count and rate (events/s over the last minute) per event kind.
func (rl *RateLogger) Rates() map[string][2]float64 {
	out := map[string][2]float64{}
	rl.reg.Each(func(name string, i interface{}) {
		if !strings.HasPrefix(name, EventMeterPrefix) {
			return
		}
		m, ok := i.(gethmetrics.Meter)
		if !ok {
			return
		}
		snap := m.Snapshot()
		out[strings.TrimPrefix(name, EventMeterPrefix)] = [2]float64{float64(snap.Count()), snap.Rate1()}
	})
	return out
}

func (rl *RateLogger) log() {
	rates := rl.Rates()
	kinds := make([]string, 0, len(rates))
	for k := range rates {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	args := []any{"running", time.Since(rl.started).Round(time.Second)}
	for _, k := range kinds {
		v := rates[k]
		args = append(args,
			k+".n", humanize.Comma(int64(v[0])),
			k+".eps", common.DecimalToFixed(v[1], 2))
	}
	rl.logger.Info("Engine events", args...)
}

func (rl *RateLogger) Stop() {
	if rl == nil || rl.ticker == nil {
		return
	}
	rl.once.Do(func() {
		rl.ticker.Stop()
		close(rl.quit)
	})
}
