// Package influxdb exports session snapshots to an InfluxDB v2 Write API.
package influxdb

import (
	"context"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/session"
)

const measurement = "drive_snapshot"

type Exporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *slog.Logger
}

func NewExporter(config *params.InfluxDBConfig) *Exporter {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	return &Exporter{
		client:   client,
		writeAPI: client.WriteAPI(config.Org, config.Bucket),
		logger:   slog.With("d", "influxdb"),
	}
}

// Run writes every snapshot the engine publishes until ctx is done.
// The Write API buffers and flushes on its own; Run flushes once more on the way out.
func (x *Exporter) Run(ctx context.Context, engine *session.Engine) error {
	// Errors must be drained or the writer blocks.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := x.writeAPI.Errors()
	go func() {
		for e := range errorsCh {
			x.logger.Warn("InfluxDB write failed", "error", e)
		}
	}()

	// Close flushes over the network; the subscription must be gone by then
	// or a full buffer stalls the engine.
	defer x.Close()
	snaps := make(chan session.State, 16)
	sub := engine.SubscribeSnapshots(snaps)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case s := <-snaps:
			if p := SnapshotPoint(s); p != nil {
				x.writeAPI.WritePoint(p)
			}
		}
	}
}

func (x *Exporter) Close() {
	x.writeAPI.Flush()
	x.client.Close()
}

// SnapshotPoint renders a snapshot as a point, or nil before the first fix.
func SnapshotPoint(s session.State) *write.Point {
	if s.LastCoordinate == nil {
		return nil
	}
	p := influxdb2.NewPointWithMeasurement(measurement).
		SetTime(s.UpdatedAt).
		AddTag("session", s.Started.UTC().Format(time.RFC3339)).
		AddField("latitude", s.LastCoordinate.Lat()).
		AddField("longitude", s.LastCoordinate.Lon()).
		AddField("distance", s.CumulativeDistance).
		AddField("points", s.Points).
		AddField("speed_score", s.SpeedScore).
		AddField("braking_score", s.BrakingScore).
		AddField("acceleration_score", s.AccelerationScore)

	if s.LastCoordinate.Altitude != nil {
		p.AddField("elevation", *s.LastCoordinate.Altitude)
	}
	if s.Speed != nil {
		p.AddField("speed", *s.Speed)
	}
	if s.Accuracy != nil {
		p.AddField("accuracy", *s.Accuracy)
	}
	if s.SpeedLimit != nil {
		p.AddField("speed_limit", *s.SpeedLimit)
	}
	if a := s.LastAcceleration; a != nil {
		p.AddField("accelerometer_x", a.X)
		p.AddField("accelerometer_y", a.Y)
		p.AddField("accelerometer_z", a.Z)
	}
	if w := s.Weather; w != nil {
		p.AddField("ambient_temp", w.Temperature)
		p.AddField("barometer", w.Pressure)
		p.AddField("humidity", w.Humidity)
		p.AddField("wind_speed", w.WindSpeed)
	}
	return p
}
