package api

import (
	"github.com/clipreel/clipreel/internal/catalog"
	"github.com/clipreel/clipreel/internal/ledger"
	"github.com/clipreel/clipreel/internal/media"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest = "BAD_REQUEST"
	CodeNotFound   = "NOT_FOUND"
	CodeForbidden  = "FORBIDDEN"
	CodeInternal   = "INTERNAL_ERROR"
)

// Messages kept compatible with existing browser clients.
const (
	msgInvalidPayload = "Invalid request payload"
	msgNotFound       = "User or playlists not found"
	msgUnexpected     = "An unexpected error occurred"

	msgUserIDRequired    = "User ID is required."
	msgNoRenderFiles     = "No render files found for this user."
	msgRenderFilesFailed = "Failed to fetch render files."
)

type RenderResponse struct {
	Success       bool                     `json:"success"`
	RenderedFiles []catalog.RenderedOutput `json:"renderedFiles"`
}

type RenderFilesResponse struct {
	Success     bool                   `json:"success"`
	RenderFiles []catalog.RenderedFile `json:"renderFiles"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	UptimeS int64               `json:"uptime_s"`
	Tools   *media.Capabilities `json:"tools,omitempty"`
}

type RunsResponse struct {
	Runs []*ledger.Run `json:"runs"`
}

type OrphansResponse struct {
	Orphans []*ledger.Orphan `json:"orphans"`
}
