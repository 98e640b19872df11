package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature is returned by VerifySignature for tampered or expired URLs.
var ErrInvalidSignature = errors.New("invalid or expired signature")

// FSStore implements ObjectStore on a local directory. Signed URLs point at
// BaseURL and are checked with VerifySignature by whoever serves them.
type FSStore struct {
	Root    string
	BaseURL string
	secret  []byte
	now     func() time.Time
}

func NewFSStore(root, baseURL, secret string) (*FSStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("fs store signing secret is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object root %s: %w", root, err)
	}
	return &FSStore{
		Root:    root,
		BaseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

// objectPath maps a key onto the root, refusing keys that escape it.
func (s *FSStore) objectPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean[1:])), nil
}

func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	return f, nil
}

// Put writes to a temp file in the destination directory and renames it, so
// readers never see a partial object.
func (s *FSStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	p, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("short write for %s: wrote %d of %d bytes", key, n, size)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to commit object %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.objectPath(key); err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, expires))

	return s.BaseURL + "/" + (&url.URL{Path: key}).EscapedPath() + "?" + q.Encode(), nil
}

// VerifySignature checks the expires/signature pair issued by PresignGet.
func (s *FSStore) VerifySignature(key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if s.now().Unix() > exp {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(signature), []byte(s.sign(key, exp))) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *FSStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
