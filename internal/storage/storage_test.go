package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestFSStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir(), "http://127.0.0.1:5001/objects/", "test-secret")
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	return s
}

func TestFSStore_PutGet(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()
	key := "users/u1/rendered_videos/output-1.mp4"

	if err := s.Put(ctx, key, strings.NewReader("video-bytes"), 11, VideoContentType); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rc, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "video-bytes" {
		t.Errorf("Get() = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(s.Root, "users", "u1", "rendered_videos"))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (no temp files)", len(entries))
	}
}

func TestFSStore_Get_Missing(t *testing.T) {
	s := newTestFSStore(t)
	_, err := s.Get(context.Background(), "nope.mp4")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestFSStore_Put_ShortWrite(t *testing.T) {
	s := newTestFSStore(t)
	err := s.Put(context.Background(), "a.mp4", strings.NewReader("abc"), 10, VideoContentType)
	if err == nil {
		t.Fatal("expected short write error")
	}
	if _, err := s.Get(context.Background(), "a.mp4"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("partial object visible after failed Put: %v", err)
	}
}

func TestFSStore_KeyCannotEscapeRoot(t *testing.T) {
	s := newTestFSStore(t)
	p, err := s.objectPath("../../etc/passwd")
	if err != nil {
		t.Fatalf("objectPath() error = %v", err)
	}
	if !strings.HasPrefix(p, s.Root) {
		t.Errorf("objectPath() = %s escapes root %s", p, s.Root)
	}
	if _, err := s.objectPath(""); err == nil {
		t.Error("empty key accepted")
	}
}

func TestFSStore_PresignAndVerify(t *testing.T) {
	s := newTestFSStore(t)
	now := time.Unix(1_800_000_000, 0)
	s.now = func() time.Time { return now }

	key := "users/u1/rendered_videos/output-1.mp4"
	raw, err := s.PresignGet(context.Background(), key, time.Hour)
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	if !strings.HasPrefix(raw, "http://127.0.0.1:5001/objects/users/u1/") {
		t.Errorf("url = %s", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	exp := u.Query().Get("expires")
	sig := u.Query().Get("signature")
	if exp != "1800003600" {
		t.Errorf("expires = %s, want now+1h", exp)
	}

	if err := s.VerifySignature(key, exp, sig); err != nil {
		t.Errorf("VerifySignature() error = %v", err)
	}
	if err := s.VerifySignature("users/u2/other.mp4", exp, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("signature accepted for another key: %v", err)
	}
	if err := s.VerifySignature(key, "1800007200", sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("signature accepted with extended expiry: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if err := s.VerifySignature(key, exp, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expired signature accepted: %v", err)
	}
}

func TestNewFSStore_RequiresSecret(t *testing.T) {
	if _, err := NewFSStore(t.TempDir(), "http://x", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"}); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}

func TestS3Store_PresignGet(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "clips",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}

	raw, err := s.PresignGet(context.Background(), "users/u1/rendered_videos/output-1.mp4", time.Hour)
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	if !strings.HasPrefix(raw, "http://localhost:9000/clips/users/u1/rendered_videos/output-1.mp4?") {
		t.Errorf("url = %s", raw)
	}
	if !strings.Contains(raw, "X-Amz-Expires=3600") {
		t.Errorf("url %s missing 1h expiry", raw)
	}
}
