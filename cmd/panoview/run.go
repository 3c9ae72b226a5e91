package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/streetside/panoview/internal/app"
	"github.com/streetside/panoview/internal/tui"
)

func newRunCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the interactive map surface",
		Long: `Lists the configured annotations. Selecting one looks up the nearest
panorama; the panel shows the scene on display, the selection phase and the
render configuration applied to the map.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.SettingsFromConfig()
			if err != nil {
				return err
			}
			settings.Version = Version

			a, err := app.New(cmd.Context(), settings, app.Options{}, s.log)
			if err != nil {
				return err
			}
			defer a.Close()

			m := tui.New(a)
			defer m.Close()

			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
