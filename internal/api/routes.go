package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipreel/clipreel/internal/catalog"
	"github.com/clipreel/clipreel/internal/ledger"
	"github.com/clipreel/clipreel/internal/media"
	"github.com/clipreel/clipreel/internal/render"
	"github.com/clipreel/clipreel/internal/storage"
)

const maxRequestBody = 1 << 20

// Renderer runs a render request; *render.Service implements it.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Outcome, error)
}

// ToolChecker reports media tool availability; *media.Doctor implements it.
type ToolChecker interface {
	Get(ctx context.Context) *media.Capabilities
}

// SignedObjects serves objects behind URLs issued by storage.FSStore.
type SignedObjects interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	VerifySignature(key, expires, signature string) error
}

// RenderHistory lists stored renders; catalog.Store implementations satisfy it.
type RenderHistory interface {
	ListRenderedOutputs(ctx context.Context, userID string) ([]catalog.RenderedFile, error)
}

// URLSigner issues read URLs for stored objects.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware())

	r.Get("/health", healthHandler(cfg))
	r.Post("/api/render-playlist", renderHandler(cfg))

	if cfg.History != nil && cfg.Signer != nil {
		r.Get("/api/render-files", renderFilesHandler(cfg))
	}
	if cfg.Ledger != nil {
		r.Get("/api/renders", listRunsHandler(cfg))
		r.Get("/api/orphans", listOrphansHandler(cfg))
		r.Post("/api/orphans/{id}/reconcile", reconcileHandler(cfg))
	}
	if cfg.Objects != nil {
		r.Get("/objects/*", objectHandler(cfg))
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Doctor != nil {
			resp.Tools = cfg.Doctor.Get(r.Context())
			if !resp.Tools.Ready() {
				resp.Status = "degraded"
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req render.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err := dec.Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, msgInvalidPayload, err.Error(), CodeBadRequest)
			return
		}
		req.RequestID = RequestIDFrom(r.Context())

		outcome, err := cfg.Renderer.Render(r.Context(), req)
		switch {
		case errors.Is(err, render.ErrInvalidRequest):
			WriteError(w, http.StatusBadRequest, msgInvalidPayload, err.Error(), CodeBadRequest)
			return
		case errors.Is(err, render.ErrNotFound):
			WriteError(w, http.StatusNotFound, msgNotFound, err.Error(), CodeNotFound)
			return
		case err != nil:
			cfg.Logger.Error("render request failed",
				"request_id", req.RequestID,
				"user_id", req.UserID,
				"error", err,
			)
			WriteError(w, http.StatusInternalServerError, msgUnexpected, err.Error(), CodeInternal)
			return
		}

		WriteJSON(w, http.StatusOK, RenderResponse{Success: true, RenderedFiles: outcome.Outputs()})
	}
}

// renderFilesHandler lists a user's renders with freshly signed URLs; the
// stored ones expire an hour after each render.
func renderFilesHandler(cfg ServerConfig) http.HandlerFunc {
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = render.DefaultSignedURLTTL
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			WriteError(w, http.StatusBadRequest, msgUserIDRequired, "", CodeBadRequest)
			return
		}

		files, err := cfg.History.ListRenderedOutputs(r.Context(), userID)
		if err != nil {
			cfg.Logger.Error("failed to list render files", "user_id", userID, "error", err)
			WriteError(w, http.StatusInternalServerError, msgRenderFilesFailed, err.Error(), CodeInternal)
			return
		}
		if files == nil {
			WriteError(w, http.StatusNotFound, msgNoRenderFiles, "", CodeNotFound)
			return
		}

		for i := range files {
			url, err := cfg.Signer.PresignGet(r.Context(), files[i].Key, ttl)
			if err != nil {
				cfg.Logger.Error("failed to sign render file", "user_id", userID, "key", files[i].Key, "error", err)
				WriteError(w, http.StatusInternalServerError, msgRenderFilesFailed, err.Error(), CodeInternal)
				return
			}
			files[i].URL = url
		}
		WriteJSON(w, http.StatusOK, RenderFilesResponse{Success: true, RenderFiles: files})
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "", CodeBadRequest)
				return
			}
			limit = n
		}

		runs, err := cfg.Ledger.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list renders", err.Error(), CodeInternal)
			return
		}
		if runs == nil {
			runs = []*ledger.Run{}
		}
		WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs})
	}
}

func listOrphansHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := r.URL.Query().Get("all") == "true"
		orphans, err := cfg.Ledger.ListOrphans(r.Context(), all)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list orphans", err.Error(), CodeInternal)
			return
		}
		if orphans == nil {
			orphans = []*ledger.Orphan{}
		}
		WriteJSON(w, http.StatusOK, OrphansResponse{Orphans: orphans})
	}
}

func reconcileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := cfg.Ledger.MarkReconciled(r.Context(), id)
		if errors.Is(err, ledger.ErrOrphanNotFound) {
			WriteError(w, http.StatusNotFound, "orphan not found", "", CodeNotFound)
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to reconcile orphan", err.Error(), CodeInternal)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func objectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		q := r.URL.Query()
		if err := cfg.Objects.VerifySignature(key, q.Get("expires"), q.Get("signature")); err != nil {
			WriteError(w, http.StatusForbidden, "invalid or expired link", "", CodeForbidden)
			return
		}

		rc, err := cfg.Objects.Get(r.Context(), key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			WriteError(w, http.StatusNotFound, "object not found", "", CodeNotFound)
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to open object", err.Error(), CodeInternal)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", storage.VideoContentType)
		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, "", time.Time{}, rs)
			return
		}
		io.Copy(w, rc)
	}
}
