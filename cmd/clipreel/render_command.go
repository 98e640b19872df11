package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clipreel/clipreel/internal/api"
	"github.com/clipreel/clipreel/internal/render"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var playlists []string

	cmd := &cobra.Command{
		Use:     "render",
		Short:   "Render playlists once and print the result as JSON",
		Example: "  clipreel render --user u1 --playlist p1 --playlist p2",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			outcome, err := a.service.Render(cmd.Context(), render.Request{
				UserID:      userID,
				PlaylistIDs: playlists,
				RequestID:   uuid.New().String()[:8],
			})
			if err != nil {
				return err
			}

			for _, res := range outcome.Results {
				if !res.Ok() {
					fmt.Fprintf(cmd.ErrOrStderr(), "playlist %s failed at %s: %v\n", res.ProjectID, res.Stage, res.Err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.RenderResponse{Success: true, RenderedFiles: outcome.Outputs()})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id owning the playlists")
	cmd.Flags().StringArrayVar(&playlists, "playlist", nil, "Playlist (project) id, repeatable")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("playlist")

	return cmd
}
