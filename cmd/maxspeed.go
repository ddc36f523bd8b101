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
	"fmt"
	"strconv"

	"github.com/rotblauer/catdrive/params"
	"github.com/rotblauer/catdrive/resolver"
	"github.com/rotblauer/catdrive/types/sample"
	"github.com/spf13/cobra"
)

var optMaxSpeedRadius float64

// maxspeedCmd represents the maxspeed command
var maxspeedCmd = &cobra.Command{
	Use:   "maxspeed LAT LON",
	Short: "Look up the speed limit at a coordinate",
	Long: `Looks up the posted speed limit at a coordinate the same way a driving session does,
and prints it in km/h.

Example:

  catdrive maxspeed 48.8566 2.3522 --radius 30
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		c := sample.NewCoordinate(lat, lon)
		if err := c.Validate(); err != nil {
			return err
		}

		config := params.DefaultOverpassConfig()
		config.Endpoint = optOverpassEndpoint
		kmh, ok, err := resolver.NewOverpass(config).ResolveSpeedLimit(context.Background(), c, optMaxSpeedRadius)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "unknown")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s km/h\n", strconv.FormatFloat(kmh, 'f', -1, 64))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(maxspeedCmd)

	flags := maxspeedCmd.Flags()
	flags.Float64Var(&optMaxSpeedRadius, "radius", 25, "search radius in meters (clamped to the lookup bounds)")
	flags.StringVar(&optOverpassEndpoint, "overpass.endpoint", params.DefaultOverpassConfig().Endpoint, "Overpass API interpreter URL")
}
