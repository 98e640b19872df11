package catalog

import (
	"errors"
	"sort"
	"time"
)

// ErrProjectNotFound is returned when a targeted update matches no project.
var ErrProjectNotFound = errors.New("project not found in user catalog")

// Clip is one source segment of a playlist. SeqPos orders clips.
type Clip struct {
	Key      string `json:"key" bson:"key"`
	FileName string `json:"fileName" bson:"fileName"`
	SeqPos   int    `json:"seqPos" bson:"seqPos"`
}

// RenderedOutput describes one published concatenation. Nullable metadata
// fields are pointers so they round-trip as null.
type RenderedOutput struct {
	Key        string    `json:"key" bson:"key"`
	FileName   string    `json:"fileName" bson:"fileName"`
	URL        string    `json:"url" bson:"url"`
	ProjectID  string    `json:"projectId" bson:"projectId"`
	FileID     string    `json:"fileId" bson:"fileId"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	Duration   *float64  `json:"duration" bson:"duration"`
	FrameRate  *string   `json:"frameRate" bson:"frameRate"`
	Resolution *string   `json:"resolution" bson:"resolution"`
}

// RenderedFile is a rendered output listed together with its project title.
type RenderedFile struct {
	RenderedOutput `bson:",inline"`
	ProjectTitle   string `json:"projectTitle" bson:"projectTitle"`
}

type PlaylistProject struct {
	ProjectID       string           `json:"projectId" bson:"projectId"`
	ProjectTitle    string           `json:"projectTitle" bson:"projectTitle"`
	Clips           []Clip           `json:"playlistsFile" bson:"playlistsFile"`
	RenderedOutputs []RenderedOutput `json:"renderFile" bson:"renderFile"`
}

// UserCatalog is the root document per user. A user with no projects has no
// project catalog to render from.
type UserCatalog struct {
	UserID   string            `json:"userId" bson:"userId"`
	Projects []PlaylistProject `json:"userMeta" bson:"userMeta"`
}

// Project returns the project with the given id, or nil.
func (u *UserCatalog) Project(projectID string) *PlaylistProject {
	for i := range u.Projects {
		if u.Projects[i].ProjectID == projectID {
			return &u.Projects[i]
		}
	}
	return nil
}

// SortedClips returns the clips ordered by ascending SeqPos. Clips sharing a
// SeqPos keep their original relative order.
func (p *PlaylistProject) SortedClips() []Clip {
	out := make([]Clip, len(p.Clips))
	copy(out, p.Clips)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SeqPos < out[j].SeqPos
	})
	return out
}
