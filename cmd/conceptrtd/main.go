// Command conceptrtd is the reference embedding of the dispatch loop: a
// `serve` subcommand boots a kernel with a small set of demonstration
// concepts and syncs behind an HTTP front door, and `request`/`invoke`/
// `trace` project the kernel's public surface onto the command line.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagLogLevel string
	flagAddr     string
)

var rootCmd = &cobra.Command{
	Use:   "conceptrtd",
	Short: "Run and drive a concept-oriented application runtime",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevel()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagLogLevel, "loglevel", "l", "info",
		"log level (panic, fatal, error, warn, info, debug)")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "http://127.0.0.1:8080",
		"address of a running `serve` instance, for request/invoke/trace")

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.AddCommand(serveCmd, requestCmd, invokeCmd, traceCmd)
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetEnvPrefix("conceptrt")
	viper.AutomaticEnv()
}

func setLogLevel() {
	lvl, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
