package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldops/msp-workflow/internal/app"
	"github.com/fieldops/msp-workflow/internal/seed"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load workflows, engineers, teams and SLA policies from YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required; in-memory data would be discarded on exit")
	}
	doc, err := seed.LoadFile(args[0])
	if err != nil {
		return err
	}

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := seed.NewLoader(application.Repos, application.Workflows, logger).Apply(cmd.Context(), doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d workflows, %d engineers, %d teams, %d sla policies\n",
		summary.Workflows, summary.Engineers, summary.Teams, summary.SLAPolicies)
	return nil
}
