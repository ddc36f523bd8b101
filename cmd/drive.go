/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rotblauer/catdrive/common"
	"github.com/rotblauer/catdrive/daemon/webd"
	"github.com/rotblauer/catdrive/metrics"
	"github.com/rotblauer/catdrive/metrics/influxdb"
	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/resolver"
	"github.com/rotblauer/catdrive/session"
	"github.com/rotblauer/catdrive/source"
	"github.com/spf13/cobra"
)

var (
	optVariant             string
	optPointsThreshold     float64
	optBonusThreshold      float64
	optSpeedLimitOverride  float64
	optSpeedLimitInterval  time.Duration
	optWeatherInterval     time.Duration
	optLookupTimeout       time.Duration
	optNoLookups           bool
	optOverpassEndpoint    string
	optOpenWeatherKey      string
	optReplay              string
	optReplayPace          float64
	optReplayDedupe        int
	optReplayNoMotion      bool
	optHTTPAddress         string
	optHTTPToken           string
	optInfluxURL           string
	optMetricsInterval     time.Duration
	optSpeedLimitCacheSize int
)

// driveCmd represents the drive command
var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Run a driving session",
	Long: `Runs one driving session until interrupted, or until the replay ends.

By default readings come from a phone over HTTP:

  POST /position   {"latitude":..,"longitude":..,"speed":..,"accuracy":..} or {"error":".."}
  POST /motion     {"acceleration":{"x":..,"y":..,"z":..},"accelerationIncludingGravity":{..}}
  GET  /snapshot   /snapshot.geojson   /summary   /socket (websocket)

With --replay, readings come from an NDJSON recording of the same records,
each with a "type" of position, motion or position_error.
The session summary is printed to stdout as JSON on exit.

Examples:

  catdrive drive --http.address 0.0.0.0:3000
  catdrive drive --replay commute.ndjson --replay.pace 10 --variant b
  cat commute.ndjson | catdrive drive --replay - --speedlimit.override 50
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)

		config, err := driveConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := common.Interrupted(context.Background())
		defer stop()

		registry := metrics.NewRegistry()
		opts := []session.Option{session.WithMetricsRegistry(registry)}
		if optNoLookups {
			if config.SpeedLimitOverrideKmh != nil {
				opts = append(opts, session.WithSpeedLimitResolver(resolver.StaticSpeedLimit(*config.SpeedLimitOverrideKmh)))
			}
		} else {
			limits, weather, closeLookups, err := driveResolvers()
			if err != nil {
				return err
			}
			defer closeLookups()
			opts = append(opts, session.WithSpeedLimitResolver(limits))
			if weather != nil {
				opts = append(opts, session.WithWeatherResolver(weather))
			}
		}
		engine, err := session.NewEngine(config, opts...)
		if err != nil {
			return err
		}

		meter := metrics.NewRateLogger(registry, optMetricsInterval)
		meter.Start()
		defer meter.Stop()

		if err := engine.Start(ctx); err != nil {
			return err
		}

		influxConfig := params.DefaultInfluxDBConfig()
		if optInfluxURL != "" {
			influxConfig.URL = optInfluxURL
		}
		if influxConfig.Enabled() {
			exportCtx, cancelExport := context.WithCancel(ctx)
			exportDone := make(chan struct{})
			go func() {
				defer close(exportDone)
				if err := influxdb.NewExporter(influxConfig).Run(exportCtx, engine); err != nil {
					slog.Error("InfluxDB exporter stopped", "error", err)
				}
			}()
			defer func() {
				cancelExport()
				<-exportDone
			}()
		}

		if optReplay != "" {
			err = runReplay(ctx, engine)
		} else {
			err = runWeb(ctx, engine)
		}
		engine.Stop()
		if err != nil {
			return err
		}

		sum, err := engine.Summary(context.Background())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

// driveConfig builds the engine config from the variant preset and any flags that override it.
func driveConfig(cmd *cobra.Command) (*params.EngineConfig, error) {
	config, err := params.Variant(optVariant)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("points.threshold") {
		config.PointsThreshold = optPointsThreshold
	}
	if flags.Changed("bonus.threshold") {
		config.BonusScoreThreshold = optBonusThreshold
	}
	if optSpeedLimitOverride > 0 {
		config.SpeedLimitOverrideKmh = common.Ptr(optSpeedLimitOverride)
	}
	config.SpeedLimitInterval = optSpeedLimitInterval
	config.WeatherInterval = optWeatherInterval
	config.LookupTimeout = optLookupTimeout
	return config, config.Validate()
}

// driveResolvers builds the cached Overpass and OpenWeather lookups.
// Weather is optional: without an API key the session runs without it.
func driveResolvers() (session.SpeedLimitResolver, session.WeatherResolver, func(), error) {
	cacheConfig := params.DefaultResolverCacheConfig()
	cacheConfig.SpeedLimitCacheSize = optSpeedLimitCacheSize

	overpassConfig := params.DefaultOverpassConfig()
	overpassConfig.Endpoint = optOverpassEndpoint
	overpassConfig.Timeout = optLookupTimeout
	limits, err := resolver.NewCachedSpeedLimits(resolver.NewOverpass(overpassConfig), cacheConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	weatherConfig := params.DefaultOpenWeatherConfig()
	weatherConfig.APIKey = optOpenWeatherKey
	weatherConfig.Timeout = optLookupTimeout
	openWeather, err := resolver.NewOpenWeather(weatherConfig)
	if errors.Is(err, resolver.ErrNoAPIKey) {
		slog.Warn("No OpenWeather API key, running without weather")
		return limits, nil, func() {}, nil
	} else if err != nil {
		return nil, nil, nil, err
	}
	weather := resolver.NewCachedWeather(openWeather, cacheConfig)
	return limits, weather, weather.Close, nil
}

func runReplay(ctx context.Context, engine *session.Engine) error {
	var in io.Reader = os.Stdin
	if optReplay != "-" {
		f, err := os.Open(optReplay)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var opts []source.ReplayOption
	if optReplayDedupe > 0 {
		opts = append(opts, source.WithDedupe(optReplayDedupe))
	}
	if optReplayPace > 0 {
		opts = append(opts, source.WithPace(optReplayPace))
	}
	if optReplayNoMotion {
		opts = append(opts, source.WithoutMotion())
	}
	replay := source.NewReplay(in, opts...)

	motions, err := source.RequireMotion(ctx, replay)
	if err != nil {
		return fmt.Errorf("cannot score driving without motion events: %w", err)
	}
	positions, positionErrs := replay.Positions(ctx)
	if err := source.Pump(ctx, engine, positions, positionErrs, motions); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return replay.Err()
}

func runWeb(ctx context.Context, engine *session.Engine) error {
	config := params.DefaultWebDaemonConfig()
	config.Address = optHTTPAddress
	if optHTTPToken != "" {
		config.Token = optHTTPToken
	}
	return webd.NewWebDaemon(config, engine).Run(ctx)
}

func init() {
	rootCmd.AddCommand(driveCmd)

	defaults := params.DefaultEngineConfig()
	flags := driveCmd.Flags()
	flags.StringVar(&optVariant, "variant", "a", "scoring preset: a (100m points) or b (50m points, gentler speed scoring)")
	flags.Float64Var(&optPointsThreshold, "points.threshold", defaults.PointsThreshold, "meters driven per point (default from variant)")
	flags.Float64Var(&optBonusThreshold, "bonus.threshold", defaults.BonusScoreThreshold, "score all three must reach for double points")
	flags.Float64Var(&optSpeedLimitOverride, "speedlimit.override", 0, "use this speed limit (km/h) everywhere; 0 is off")
	flags.DurationVar(&optSpeedLimitInterval, "speedlimit.interval", defaults.SpeedLimitInterval, "speed limit refresh interval")
	flags.DurationVar(&optWeatherInterval, "weather.interval", defaults.WeatherInterval, "weather refresh interval")
	flags.DurationVar(&optLookupTimeout, "lookup.timeout", defaults.LookupTimeout, "timeout for a single speed limit or weather lookup")
	flags.BoolVar(&optNoLookups, "no-lookups", false, "do not look up speed limits or weather")
	flags.IntVar(&optSpeedLimitCacheSize, "speedlimit.cache", params.DefaultResolverCacheConfig().SpeedLimitCacheSize, "speed limit cache size (cells)")

	flags.StringVar(&optOverpassEndpoint, "overpass.endpoint", params.DefaultOverpassConfig().Endpoint, "Overpass API interpreter URL")
	flags.StringVar(&optOpenWeatherKey, "openweather.key", params.DefaultOpenWeatherConfig().APIKey, "OpenWeatherMap API key (default $OPENWEATHER_API_KEY)")

	flags.StringVar(&optReplay, "replay", "", "replay an NDJSON recording instead of serving HTTP; - for stdin")
	flags.Float64Var(&optReplayPace, "replay.pace", 0, "replay at the recorded pace times this factor; 0 is as fast as possible")
	flags.IntVar(&optReplayDedupe, "replay.dedupe", 0, "drop records identical to one of the last N")
	flags.BoolVar(&optReplayNoMotion, "replay.no-motion", false, "replay as a device without a motion sensor")

	flags.StringVar(&optHTTPAddress, "http.address", params.DefaultWebListenerConfig().Address, "HTTP address to listen on")
	flags.StringVar(&optHTTPToken, "http.token", "", "token required to post readings (default $CATDRIVE_TOKEN)")

	flags.StringVar(&optInfluxURL, "influx.url", "", "InfluxDB URL to export snapshots to (default $INFLUXDB_URL)")
	flags.DurationVar(&optMetricsInterval, "metrics.interval", params.DefaultMeterInterval, "event rate logging interval")
}
