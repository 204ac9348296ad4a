package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/chatsync/internal/config"
	"github.com/tbourn/chatsync/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var envFile string

// Execute runs the root command. It only needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "chatsync",
	Short:         "Network-wide chat state for a fleet of game servers",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"dotenv file loaded before reading the environment; missing files are ignored")
	rootCmd.AddCommand(serveCmd, relayCmd, migrateCmd)
}

// bootstrap loads the dotenv file and the configuration, then installs
// the process logger. Log lines carry role when set, the node name
// otherwise.
func bootstrap(role string) (config.Config, zerolog.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return config.Config{}, zerolog.Nop(), errors.Wrapf(err, "load %s", envFile)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	lg := sysutil.SetupLogger(os.Stderr, cfg.LogPretty, sysutil.FirstNonEmpty(role, cfg.NodeName))
	return cfg, lg, nil
}
