package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/streetside/panoview/internal/app"
	"github.com/streetside/panoview/internal/geo"
	"github.com/streetside/panoview/internal/scene"
	"github.com/streetside/panoview/internal/selection"
)

type lookupOutput struct {
	RequestID uint64  `json:"requestId"`
	Status    string  `json:"status"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SceneID   string  `json:"sceneId,omitempty"`
	Heading   float64 `json:"heading,omitempty"`
	LatencyMs int64   `json:"latencyMs"`
	Error     string  `json:"error,omitempty"`
}

func newLookupCmd(s *session) *cobra.Command {
	var at string
	var timeout time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Select a coordinate and print the scene it resolves to",
		Long: `Runs one selection through the same path the map surface uses, waits
for the request to settle and prints the outcome. The request is journaled
like any other.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := geo.ParseCoordinate(at)
			if err != nil {
				return fmt.Errorf("--at %q: %w", at, err)
			}

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

			if err := a.Adapter().AnnotationSelected(coord); err != nil {
				return err
			}
			req, err := waitSettled(cmd.Context(), a.Coordinator(), timeout)
			if err != nil {
				return err
			}
			s.log.Debug().Uint64("request", req.ID).Str("status", req.Status.String()).Msg("Lookup settled")

			if err := printLookup(cmd, req, jsonOutput); err != nil {
				return err
			}
			if req.Status == scene.Failed {
				return fmt.Errorf("lookup at %s failed: %w", coord, req.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Coordinate to select as lat,lon")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the scene")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

// waitSettled polls until the current request reaches a terminal status.
func waitSettled(ctx context.Context, c *selection.Coordinator, timeout time.Duration) (scene.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if req, ok := c.Current(); ok && req.Status.Terminal() {
			return req, nil
		}
		select {
		case <-ctx.Done():
			return scene.Request{}, fmt.Errorf("no scene within %s: %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printLookup(cmd *cobra.Command, req scene.Request, jsonOutput bool) error {
	out := lookupOutput{
		RequestID: req.ID,
		Status:    req.Status.String(),
		Latitude:  req.Coordinate.Latitude,
		Longitude: req.Coordinate.Longitude,
		LatencyMs: req.Latency().Milliseconds(),
	}
	if req.Scene != nil {
		out.SceneID = req.Scene.ID
		out.Heading = req.Scene.Heading
	}
	if req.Err != nil {
		out.Error = req.Err.Error()
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	line := fmt.Sprintf("%s %s request=%d", out.Status, req.Coordinate, out.RequestID)
	if out.SceneID != "" {
		line += fmt.Sprintf(" scene=%s heading=%.0f", out.SceneID, out.Heading)
	}
	if out.Error != "" {
		line += fmt.Sprintf(" error=%q", out.Error)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
