package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

var (
	ErrNameRequired = errors.New("storage: name is required")
	ErrInvalidName  = errors.New("storage: name escapes the storage root")
	ErrNotFound     = errors.New("storage: object not found")
)

// FileStore keeps named objects under root on an afero filesystem. Writes go
// through a temporary file and a rename so readers never observe partial
// content.
type FileStore struct {
	fs   afero.Fs
	root string
}

func NewFileStore(fs afero.Fs, root string) *FileStore {
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	root = filepath.Clean(strings.TrimSpace(root))
	if root == "" {
		root = "."
	}
	return &FileStore{fs: fs, root: root}
}

func (s *FileStore) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	cleaned := path.Clean("/" + filepath.ToSlash(name))
	if cleaned == "/" || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

// Put writes data under name, replacing any previous content.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: ensure dir: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", name, err)
	}
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp.Name(), target); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("storage: commit %s: %w", name, err)
	}
	return nil
}

// Get returns the content stored under name or ErrNotFound.
func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

var _ interfaces.BlobStore = (*FileStore)(nil)

// ArtifactStore publishes files under a URL prefix the HTTP layer serves
// verbatim from the same root.
type ArtifactStore struct {
	files   *FileStore
	baseURL string
	prefix  string
}

var _ interfaces.ArtifactStore = (*ArtifactStore)(nil)

func NewArtifactStore(files *FileStore, baseURL, prefix string) *ArtifactStore {
	prefix = "/" + strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "/" {
		prefix += "/"
	}
	return &ArtifactStore{
		files:   files,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		prefix:  prefix,
	}
}

// Write stores data under name and returns its public URL.
func (s *ArtifactStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := s.files.Put(ctx, name, data); err != nil {
		return "", err
	}
	return s.URL(name), nil
}

func (s *ArtifactStore) URL(name string) string {
	escaped := (&url.URL{Path: strings.TrimPrefix(path.Clean("/"+name), "/")}).EscapedPath()
	return s.baseURL + s.prefix + escaped
}
