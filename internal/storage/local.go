package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chrscato/cdx-billreview/internal/common"
	"github.com/chrscato/cdx-billreview/internal/model"
)

// LocalClaimStore implements service.ClaimStore over a directory tree.
// It exists for development and tests; production claims live in S3.
// Keys use forward slashes regardless of platform.
type LocalClaimStore struct {
	root string
}

// NewLocalClaimStore creates a store rooted at dir.
func NewLocalClaimStore(dir string) (*LocalClaimStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: local store directory", common.ErrMissingConfig)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &LocalClaimStore{root: dir}, nil
}

func (l *LocalClaimStore) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// List returns keys under prefix in sorted order.
func (l *LocalClaimStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(l.root, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get reads and decodes one claim document.
func (l *LocalClaimStore) Get(_ context.Context, key string) (*model.Claim, error) {
	data, err := os.ReadFile(l.path(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	var claim model.Claim
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrClaimMalformed, key, err)
	}
	return &claim, nil
}

// Put writes one claim document, creating parent directories as needed.
func (l *LocalClaimStore) Put(_ context.Context, key string, claim *model.Claim) error {
	data, err := json.MarshalIndent(claim, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling claim for %s: %w", key, err)
	}

	path := l.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes one claim document.
func (l *LocalClaimStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Move writes the destination before deleting the source, mirroring the
// S3 store's move-with-confirmation discipline.
func (l *LocalClaimStore) Move(ctx context.Context, srcKey, dstKey string, claim *model.Claim) error {
	if err := l.Put(ctx, dstKey, claim); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMoveNotConfirmed, err)
	}
	return l.Delete(ctx, srcKey)
}
