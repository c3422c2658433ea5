package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	rosterFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - Multi-model AI debate orchestrator",
	Long: `Parley runs a fixed three-stage collaborative debate (Propose, Critique & Filter,
Synthesize) across multiple configured AI completion endpoints and keeps a
durable, searchable history of every session.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verboseFlag {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rosterFlag, "roster", "", "Path to a YAML per-stage roster file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
