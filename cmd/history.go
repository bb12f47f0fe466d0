package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"tasnim.dev/lbgraph/internal/store"
	"tasnim.dev/lbgraph/internal/theme"
	"tasnim.dev/lbgraph/internal/utils"
)

func NewHistoryCmd() *cobra.Command {
	var (
		stack   string
		limit   int
		history string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded syntheses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			s, err := newSession("", "", "")
			if err != nil {
				return err
			}
			defer s.log.Sync()

			h, err := store.Open(cmd.Context(), s.cfg.History(history))
			if err != nil {
				return err
			}
			defer h.Close()
			return runHistory(cmd.Context(), h, cmd.OutOrStdout(), stack, limit)
		},
	}

	cmd.Flags().StringVar(&stack, "stack", "", "only show this stack")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	cmd.Flags().StringVar(&history, "history", "", "history database path")

	return cmd
}

func runHistory(ctx context.Context, h *store.History, w io.Writer, stack string, limit int) error {
	entries, err := h.List(ctx, stack, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		lipgloss.Fprintln(w, theme.MutedStyle.Render("no syntheses recorded"))
		return nil
	}

	slices.SortStableFunc(entries, func(a, b store.Entry) int {
		return strings.Compare(a.Stack, b.Stack)
	})

	d := utils.NewDetailBuilder(20, theme.SectionStyle)
	current := ""
	for _, e := range entries {
		if e.Stack != current {
			if current != "" {
				d.Blank()
			}
			d.Section(e.Stack)
			current = e.Stack
		}
		summary := fmt.Sprintf("%s  %s, %s", utils.ShortDigest(e.Digest),
			utils.Count(e.Scopes, "scope"), utils.Count(e.Resources, "resource"))
		if e.Warnings > 0 {
			summary += theme.WarningStyle.Render(", " + utils.Count(e.Warnings, "warning"))
		}
		d.Row(utils.TimeOrDash(e.CreatedAt.Local(), utils.DateTimeSec), summary)
	}
	lipgloss.Fprint(w, d.String())
	return nil
}
