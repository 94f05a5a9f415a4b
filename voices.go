package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the speech engine",
	Example: paragraph("readaloud voices\nreadaloud voices --engine gtts"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close() //nolint:errcheck

		voices, err := a.adapter.Voices(cmd.Context())
		if err != nil {
			return err //nolint:wrapcheck
		}
		if voices == nil {
			return errors.New(a.adapter.Name() + " cannot list its voices")
		}

		header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)
		t := table.New().
			Border(lipgloss.HiddenBorder()).
			Headers("NAME", "LOCALE", "GENDER").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			})
		for _, v := range voices {
			t.Row(v.Name, dash(v.Locale), dash(v.Gender))
		}
		fmt.Println(t)
		return nil
	},
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
