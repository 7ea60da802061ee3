package main

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/daemon"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
	"chestnotes/internal/services"
)

const previewRunes = 40

func newNotesCommand(ctx *commandContext) *cobra.Command {
	notesCmd := &cobra.Command{
		Use:   "notes",
		Short: "Inspect and maintain stored notes",
	}
	notesCmd.AddCommand(newNotesListCommand(ctx))
	notesCmd.AddCommand(newNotesDeleteCommand(ctx))
	return notesCmd
}

func newNotesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes in creation order",
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

			blobs, err := blobstore.NewFS(cfg.Paths.BlobDir, logger)
			if err != nil {
				return err
			}
			views, err := notes.NewService(store, blobs, logger).List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No notes stored")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Type", "State", "Created", "Content"},
				noteRows(views),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output notes as JSON")
	return cmd
}

func noteRows(views []notes.View) [][]string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID, v.Name, string(v.Type), noteState(v), v.CreatedAt, preview(v)})
	}
	return rows
}

func noteState(v notes.View) string {
	switch {
	case v.Type == metadata.TypeText:
		return "stored"
	case v.UploadComplete != nil && *v.UploadComplete:
		return "ready"
	default:
		return "processing"
	}
}

func preview(v notes.View) string {
	if v.Type != metadata.TypeText {
		return ""
	}
	content := strings.Join(strings.Fields(v.Content), " ")
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewRunes-1]) + "…"
}

func newNotesDeleteCommand(ctx *commandContext) *cobra.Command {
	var system bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note and its media (server must be stopped)",
		Args:  cobra.ExactArgs(1),
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

			id := args[0]
			err = daemon.DeleteNote(cmd.Context(), cfg, store, logger, id, system)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			case errors.Is(err, daemon.ErrLocked):
				return fmt.Errorf("%w; delete through the HTTP API instead", err)
			case errors.Is(err, services.ErrMissingBlob):
				return fmt.Errorf("note %s has no stored media; rerun with --system to remove the record: %w", id, err)
			default:
				return err
			}
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "Allow deleting media notes whose blob is missing")
	return cmd
}
