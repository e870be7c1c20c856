package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ujjwalparashar30/github-assisstance/internal/config"
	"github.com/ujjwalparashar30/github-assisstance/internal/db"
)

var pruneCmd = &cobra.Command{
	Use:   "prune-sessions",
	Short: "Delete expired sessions from the postgres store",
	Long:  `Memory and redis stores expire sessions on their own; postgres rows are removed by this command.`,
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Session.Store != config.StorePostgres {
		return fmt.Errorf("prune-sessions requires session.store=postgres, got %q", cfg.Session.Store)
	}

	database, err := db.Connect(cmd.Context(), cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := db.NewSessionStore(database, cfg.Session.TTL).PruneExpired(cmd.Context())
	if err != nil {
		return err
	}
	log.Info("expired sessions pruned", zap.Int64("deleted", n))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired sessions\n", n)
	return err
}
