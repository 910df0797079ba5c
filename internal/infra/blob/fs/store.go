// Package fs implements core.Store on the local filesystem.
//
// Layout under the root:
//
//	<root>/<key>              payload bytes
//	<root>/.meta/<key>.json   content type, checksum and user metadata
//
// Both files are replaced by renaming a fully written temp file, so readers
// see either the previous or the new value.
package fs

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"fieldmonitor/internal/blob/core"
)

const (
	metaDir    = ".meta"
	metaExt    = ".json"
	tempPrefix = ".pending-"
	defaultDir = "./data"
)

// Store keeps one file per key below root.
type Store struct {
	root string
	now  func() time.Time
}

// New opens (and creates when missing) a store rooted at root.
func New(root string) (*Store, error) {
	root = cmp.Or(root, defaultDir)
	for _, dir := range []string{root, filepath.Join(root, metaDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("fs store: prepare %s: %w", dir, err)
		}
	}
	return &Store{root: root, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func (s *Store) Close() error { return nil }

// sanitizeKey rejects keys that are empty, absolute, climb out of the root or
// collide with the store's own bookkeeping names.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("fs store: empty key")
	}
	if path.IsAbs(key) || filepath.IsAbs(key) {
		return "", fmt.Errorf("fs store: absolute key %q", key)
	}
	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		switch {
		case part == "..":
			return "", fmt.Errorf("fs store: key %q leaves the root", key)
		case part == metaDir, strings.HasPrefix(part, tempPrefix):
			return "", fmt.Errorf("fs store: reserved key %q", key)
		}
	}
	return path.Clean(filepath.ToSlash(key)), nil
}

type location struct {
	key     string
	payload string
	sidecar string
}

func (s *Store) locate(key string) (location, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return location{}, err
	}
	native := filepath.FromSlash(clean)
	return location{
		key:     clean,
		payload: filepath.Join(s.root, native),
		sidecar: filepath.Join(s.root, metaDir, native+metaExt),
	}, nil
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	WrittenAt   time.Time         `json:"written_at"`
}

func (sc sidecar) toInfo(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         sc.Size,
		ContentType:  sc.ContentType,
		ETag:         sc.ETag,
		Metadata:     maps.Clone(sc.Metadata),
		LastModified: sc.WrittenAt,
	}
}

// replaceFile streams r into a temp file next to dst and renames it into place.
// It returns the byte count and hex sha256 of what was written.
func replaceFile(dst string, r io.Reader) (int64, string, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	sum := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, sum), r)
	if err != nil {
		return 0, "", err
	}
	if err := tmp.Sync(); err != nil {
		return 0, "", err
	}
	if err := tmp.Close(); err != nil {
		return 0, "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, "", err
	}
	committed = true
	return n, hex.EncodeToString(sum.Sum(nil)), nil
}

// Put replaces the payload stored under key.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	loc, err := s.locate(key)
	if err != nil {
		return core.Info{}, err
	}
	size, etag, err := replaceFile(loc.payload, r)
	if err != nil {
		return core.Info{}, fmt.Errorf("fs store: write %s: %w", loc.key, err)
	}
	sc := sidecar{
		ContentType: opts.ContentType,
		Metadata:    maps.Clone(opts.Metadata),
		ETag:        etag,
		Size:        size,
		WrittenAt:   s.now(),
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return core.Info{}, err
	}
	if _, _, err := replaceFile(loc.sidecar, strings.NewReader(string(raw))); err != nil {
		return core.Info{}, fmt.Errorf("fs store: write metadata for %s: %w", loc.key, err)
	}
	return sc.toInfo(loc.key), nil
}

// Get opens the payload. The caller closes the returned reader.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	loc, err := s.locate(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := os.Open(loc.payload)
	if err != nil {
		return core.Info{}, nil, notFound(loc.key, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return core.Info{}, nil, err
	}
	info, err := s.describe(loc, st)
	if err != nil {
		_ = f.Close()
		return core.Info{}, nil, err
	}
	return info, f, nil
}

// Head reports payload metadata without opening the payload.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	loc, err := s.locate(key)
	if err != nil {
		return core.Info{}, err
	}
	st, err := os.Stat(loc.payload)
	if err != nil {
		return core.Info{}, notFound(loc.key, err)
	}
	return s.describe(loc, st)
}

// describe prefers the sidecar and falls back to file stats when it is absent.
func (s *Store) describe(loc location, st iofs.FileInfo) (core.Info, error) {
	raw, err := os.ReadFile(loc.sidecar)
	if errors.Is(err, iofs.ErrNotExist) {
		return core.Info{Key: loc.key, Size: st.Size(), LastModified: st.ModTime().UTC()}, nil
	}
	if err != nil {
		return core.Info{}, err
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return core.Info{}, fmt.Errorf("fs store: metadata for %s: %w", loc.key, err)
	}
	return sc.toInfo(loc.key), nil
}

// Delete removes the payload and its sidecar.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	loc, err := s.locate(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(loc.payload)
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fs store: delete %s: %w", loc.key, err)
	}
	if err := os.Remove(loc.sidecar); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return true, fmt.Errorf("fs store: delete metadata for %s: %w", loc.key, err)
	}
	return true, nil
}

// List returns every payload whose key starts with prefix, ordered by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == metaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		info, err := s.describe(location{
			key:     key,
			payload: p,
			sidecar: filepath.Join(s.root, metaDir, rel+metaExt),
		}, st)
		if err != nil {
			return err
		}
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func notFound(key string, err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("fs store %s: %w", key, core.ErrNotFound)
	}
	return fmt.Errorf("fs store %s: %w", key, err)
}
