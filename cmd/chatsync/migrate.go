package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the node tables and exit",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, lg, err := bootstrap("")
		if err != nil {
			return err
		}
		if _, _, err := openStores(cfg); err != nil {
			return err
		}
		lg.Info().Str("mode", cfg.Storage.Mode).Msg("schema up to date")
		return nil
	},
}
