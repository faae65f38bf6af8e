package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Disk keeps photos under a local directory served at publicPrefix.
type Disk struct {
	root         string
	publicPrefix string
}

func NewDisk(root, publicPrefix string) (*Disk, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	prefix := "/" + strings.Trim(publicPrefix, "/")
	return &Disk{root: root, publicPrefix: prefix}, nil
}

// Root is the directory served for the public prefix.
func (d *Disk) Root() string {
	return d.root
}

// Save writes body to a temp file and renames it into place, so readers never
// observe a partial photo.
func (d *Disk) Save(ctx context.Context, name, _ string, body io.Reader) (string, error) {
	rel, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(d.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating photo directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing photo: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("moving photo into place: %w", err)
	}

	return path.Join(d.publicPrefix, rel), nil
}

// Delete removes a photo previously returned by Save. Missing files are not
// an error.
func (d *Disk) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, d.publicPrefix+"/") {
		return fmt.Errorf("reference %q is outside %s", ref, d.publicPrefix)
	}
	rel, err := cleanName(strings.TrimPrefix(ref, d.publicPrefix+"/"))
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing photo: %w", err)
	}
	return nil
}

func cleanName(name string) (string, error) {
	rel := path.Clean("/" + strings.TrimSpace(name))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", errors.New("object name is required")
	}
	return rel, nil
}
