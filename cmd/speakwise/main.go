package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/speakwise-web/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	var (
		configPath string
		cfg        config.Config
	)

	rootCmd := &cobra.Command{
		Use:   "speakwise",
		Short: "SpeakWise web front and account CLI",
		Long: `speakwise serves the SpeakWise web front (sign-in, sign-up, OAuth callback
and role guarded dashboards) and manages the locally stored session from
the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.GetEnv())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	getConfig := func() config.Config { return cfg }
	rootCmd.AddCommand(
		serveCmd(getConfig),
		loginCmd(getConfig),
		logoutCmd(getConfig),
		whoamiCmd(getConfig),
		registerCmd(getConfig),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger().Level(zerolog.DebugLevel)
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}
