package main

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/history"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyForget bool

	historyCmd = &cobra.Command{
		Use:   "history [SOURCE]",
		Short: "List what was read and how far",
		Long: paragraph(fmt.Sprintf("\nList recently read sources with their position. Use %s SOURCE to drop one; %s will then start it from the beginning.",
			keyword("--forget"), keyword("--resume"))),
		Example: paragraph("readaloud history\nreadaloud history --forget notes.md"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultLimit, "number of entries to show")
	historyCmd.Flags().BoolVar(&historyForget, "forget", false, "forget SOURCE")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	store, err := history.Open(cmd.Context(), filepath.Join(dir, history.FileName), log.Default().WithPrefix("history"))
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer store.Close() //nolint:errcheck

	if historyForget {
		if len(args) == 0 {
			return fmt.Errorf("--forget needs a SOURCE")
		}
		source := args[0]
		if !reader.IsURL(source) {
			if source, err = filepath.Abs(source); err != nil {
				return fmt.Errorf("unable to resolve %s: %w", args[0], err)
			}
		}
		if err := store.Forget(cmd.Context(), source); err != nil {
			return err //nolint:wrapcheck
		}
		fmt.Println("Forgot", source)
		return nil
	}

	entries, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if len(entries) == 0 {
		fmt.Println(faint("Nothing read yet."))
		return nil
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("SOURCE", "PROGRESS", "READ").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Bold(true)
			}
			return cell
		})
	for _, e := range entries {
		t.Row(e.Source, progressLabel(e), humanize.Time(e.UpdatedAt))
	}
	fmt.Println(t)
	return nil
}

func progressLabel(e history.Entry) string {
	if e.Finished() {
		return "finished"
	}
	return fmt.Sprintf("%d/%d", e.Position+1, e.Total)
}
