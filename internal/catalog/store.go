// Package catalog holds the per-user playlist catalog and the document
// stores that persist it.
package catalog

import "context"

// Store is the document-store collaborator used by the render pipeline.
type Store interface {
	// FindUser returns the user's catalog, or (nil, nil) if none exists.
	FindUser(ctx context.Context, userID string) (*UserCatalog, error)

	// AppendRenderedOutput pushes out onto the renderedOutputs of the
	// (userID, projectID) project without touching any other field.
	AppendRenderedOutput(ctx context.Context, userID, projectID string, out RenderedOutput) error

	// ListRenderedOutputs returns the render history of every project, or
	// (nil, nil) if the user has no catalog.
	ListRenderedOutputs(ctx context.Context, userID string) ([]RenderedFile, error)
}
