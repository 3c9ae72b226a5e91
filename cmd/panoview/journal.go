package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/streetside/panoview/internal/app"
	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/journal"
)

type exporter interface {
	Export(path string) error
}

func newJournalCmd(s *session) *cobra.Command {
	var limit int
	var exportPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recently settled scene requests",
		Long: `Reads the request journal configured under "journal". The memory journal
only lives as long as one run, so this is useful with the sqlite and postgres
journals.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := app.OpenJournal(config.GetJournalConfig(), s.log)
			if err != nil {
				return err
			}
			if err := backend.Init(); err != nil {
				return err
			}
			defer backend.Close()

			if exportPath != "" {
				ex, ok := backend.(exporter)
				if !ok {
					return errors.New("this journal type cannot be exported")
				}
				if err := ex.Export(exportPath); err != nil {
					return err
				}
				s.log.Info().Str("path", exportPath).Msg("Journal exported")
			}

			entries, err := backend.Recent(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, err := fmt.Fprintln(out, "no journal entries")
				return err
			}
			_, err = fmt.Fprintln(out, renderEntries(entries))
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&exportPath, "export", "", "Also snapshot a sqlite journal to this file")
	return cmd
}

func renderEntries(entries []journal.Entry) string {
	t := ltable.New().
		Border(lipgloss.RoundedBorder()).
		Headers("REQUEST", "STATUS", "COORDINATE", "SCENE", "LATENCY", "SETTLED", "ERROR")
	for _, e := range entries {
		t.Row(
			strconv.FormatUint(e.RequestID, 10),
			e.Status.String(),
			e.Coordinate.String(),
			e.SceneID,
			e.Latency().String(),
			e.SettledAt.UTC().Format("2006-01-02 15:04:05"),
			e.Error,
		)
	}
	return t.Render()
}
