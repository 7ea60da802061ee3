package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chestnotes/internal/daemon"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Purge notes whose processing never finished (server must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := maintenanceLogger(cfg)
			if err != nil {
				return err
			}
			_, store, err := ctx.openStore(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			report, runErr := daemon.Recover(cmd.Context(), cfg, store, logger)
			if errors.Is(runErr, daemon.ErrLocked) {
				return fmt.Errorf("%w; the running server already recovered at startup", runErr)
			}
			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
				return runErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d incomplete notes\n", report.Scanned)
			for _, id := range report.Purged {
				fmt.Fprintf(out, "  purged  %s\n", id)
			}
			for _, id := range report.Failed {
				fmt.Fprintf(out, "  failed  %s\n", id)
			}
			fmt.Fprintf(out, "Swept %d staging and %d blob temp files\n", report.StagingSwept, report.BlobTmpSwept)
			return runErr
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the recovery report as JSON")
	return cmd
}
