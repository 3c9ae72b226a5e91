package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streetside/panoview/internal/config"
	"github.com/streetside/panoview/internal/mapstyle"
)

type resolveOutput struct {
	Style     string `json:"style"`
	Base      string `json:"base"`
	Elevation string `json:"elevation"`
	Emphasis  string `json:"emphasis,omitempty"`
	Labels    bool   `json:"labels"`
}

func newResolveCmd(s *session) *cobra.Command {
	var mapStyle, elevation, emphasis string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the render configuration for a style selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initial := config.GetInitialStyle()
			if !cmd.Flags().Changed("map") {
				mapStyle = initial.Map
			}
			if !cmd.Flags().Changed("elevation") {
				elevation = initial.Elevation
			}
			if !cmd.Flags().Changed("emphasis") {
				emphasis = initial.Emphasis
			}

			st, err := mapstyle.ParseState(mapStyle, elevation, emphasis)
			if err != nil {
				return err
			}
			cfg := mapstyle.Resolve(st)
			s.log.Debug().Str("style", st.String()).Str("configuration", cfg.String()).Msg("Resolved")

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resolveOutput{
					Style:     st.String(),
					Base:      string(cfg.Base),
					Elevation: string(cfg.Elevation),
					Emphasis:  string(cfg.Emphasis),
					Labels:    cfg.Labels,
				})
			}
			_, err = fmt.Fprintln(out, cfg.String())
			return err
		},
	}

	cmd.Flags().StringVar(&mapStyle, "map", "standard", "Map style (standard, hybrid, imagery)")
	cmd.Flags().StringVar(&elevation, "elevation", "realistic", "Elevation style (realistic, flat)")
	cmd.Flags().StringVar(&emphasis, "emphasis", "default", "Emphasis style (default, muted)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}
