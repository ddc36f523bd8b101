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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/catdrive/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string
var optLogLevel string
var optLogFormat string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catdrive",
	Short: "Score driving from phone sensors",
	Long: `catdrive fuses position fixes and motion events from a phone
into three driving scores (speed, braking, acceleration) and points for distance driven.

Every flag can also be set in ~/.catdrive.yaml, or with a CATDRIVE_ environment
variable, eg. --speedlimit.interval is CATDRIVE_SPEEDLIMIT_INTERVAL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyViper(cmd.Flags())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.catdrive.yaml)")
	pFlags.StringVar(&optLogLevel, "log.level", "info", "log level: debug, info, warn, error")
	pFlags.StringVar(&optLogFormat, "log.format", "text", "log format: text or json")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".catdrive" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".catdrive")
	}

	viper.SetEnvPrefix("catdrive")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// applyViper sets every flag left unset on the command line
// from the config file or environment, when either has it.
func applyViper(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !viper.IsSet(f.Name) {
			return
		}
		if setErr := flags.Set(f.Name, viper.GetString(f.Name)); setErr != nil {
			err = fmt.Errorf("config %s: %w", f.Name, setErr)
		}
	})
	return err
}

// setDefaultSlog installs the default logger the --log flags describe.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(optLogLevel)); err != nil {
		slog.Warn("Unknown log level, using info", "level", optLogLevel)
		level = slog.LevelInfo
	}
	handler, err := common.NewSlogHandler(os.Stderr, optLogFormat, level)
	if err != nil {
		slog.Warn("Unknown log format, using text", "error", err)
		handler, _ = common.NewSlogHandler(os.Stderr, "text", level)
	}
	slog.SetDefault(slog.New(handler).With("cmd", cmd.Name()))
}
