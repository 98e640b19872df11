package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipreel/clipreel/internal/logging"
	"github.com/clipreel/clipreel/internal/storage"
)

func TestOutputKey(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	got := OutputKey("u1", now, "abc")
	if got != "users/u1/rendered_videos/output-1800000000-abc.mp4" {
		t.Errorf("OutputKey() = %s", got)
	}
	if OutputKey("u1", now, "a") == OutputKey("u1", now, "b") {
		t.Error("same-second keys collide")
	}
}

func TestDisplayName(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 5, 9, 0, time.FixedZone("KST", 9*3600))
	tests := []struct {
		title string
		want  string
	}{
		{"Road Trip", "Road Trip 2026-10-18 23:05:09"},
		{"  spaced   out  ", "spaced out 2026-10-18 23:05:09"},
		{"", "Untitled 2026-10-18 23:05:09"},
		{"a/b<c>", "a/b<c> 2026-10-18 23:05:09"},
		{"Bob's Reel: Part #1 + Outro", "Bob's Reel: Part #1 + Outro 2026-10-18 23:05:09"},
		{"tab\there \x00\x07bell", "tab here bell 2026-10-18 23:05:09"},
		{"Cafe\u0301", "Caf\u00e9 2026-10-18 23:05:09"},
		{strings.Repeat("x", 130), strings.Repeat("x", 120) + " 2026-10-18 23:05:09"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.title, now); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestLocalClipName(t *testing.T) {
	tests := []struct {
		pos  int
		name string
		want string
	}{
		{1, "a.mp4", "001-a.mp4"},
		{12, "dir/sub/b.mp4", "012-b.mp4"},
		{3, "..", "003-clip.mp4"},
		{4, "", "004-clip.mp4"},
		{5, "it's.mp4", "005-it_s.mp4"},
	}
	for _, tt := range tests {
		if got := localClipName(tt.pos, tt.name); got != tt.want {
			t.Errorf("localClipName(%d, %q) = %q, want %q", tt.pos, tt.name, got, tt.want)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	if got := SanitizeName(" A\nB\rC\tD\x00 ", 100); got != "ABCD" {
		t.Errorf("control chars: got %q", got)
	}
	if got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10); len([]rune(got)) != 10 {
		t.Errorf("max length: got %q", got)
	}
	if got := SanitizeName("bad<>|\"name", 100); got != "bad____name" {
		t.Errorf("disallowed: got %q", got)
	}
}

func TestWorkspace_CloseRemovesOnce(t *testing.T) {
	parent := t.TempDir()
	ws, err := NewWorkspace(parent)
	if err != nil {
		t.Fatal(err)
	}
	dir := ws.PlaylistDir(0, "p/../1")
	if !strings.HasPrefix(dir, ws.Dir()) || strings.Contains(filepath.Base(dir), "/") {
		t.Errorf("PlaylistDir() = %s", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "x.mp4"), []byte("x"), 0644)

	if err := ws.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists: %v", err)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	err := error(&StageError{Stage: StageFetching, Kind: ErrFetch, Err: storage.ErrObjectNotFound})
	if !errors.Is(err, ErrFetch) || !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("errors.Is failed for %v", err)
	}
	if errors.Is(err, ErrPublish) {
		t.Error("matched unrelated kind")
	}
	if !strings.HasPrefix(err.Error(), "Fetching: fetch failed") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestClipFetcher_RemovesPartialFile(t *testing.T) {
	store, err := storage.NewFSStore(t.TempDir(), "http://x", "s")
	if err != nil {
		t.Fatal(err)
	}
	f := NewClipFetcher(store, logging.Discard())
	dest := filepath.Join(t.TempDir(), "001-a.mp4")

	err = f.Fetch(context.Background(), "missing.mp4", dest)
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Fetch() error = %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination created for missing object")
	}

	store.Put(context.Background(), "a.mp4", strings.NewReader("abc"), 3, storage.VideoContentType)
	if err := f.Fetch(context.Background(), "a.mp4", dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "abc" {
		t.Errorf("fetched = %q", data)
	}
}

func TestResultPublisher_Publish(t *testing.T) {
	store, err := storage.NewFSStore(t.TempDir(), "http://127.0.0.1/objects", "s")
	if err != nil {
		t.Fatal(err)
	}
	p := NewResultPublisher(store, 0, logging.Discard())
	local := filepath.Join(t.TempDir(), "output.mp4")
	os.WriteFile(local, []byte("rendered"), 0644)

	url, err := p.Publish(context.Background(), local, "users/u1/rendered_videos/out.mp4")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !strings.HasPrefix(url, "http://127.0.0.1/objects/users/u1/rendered_videos/out.mp4?") {
		t.Errorf("url = %s", url)
	}

	if _, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), "k.mp4"); err == nil {
		t.Error("expected error for missing local file")
	}
}
