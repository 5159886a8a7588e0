package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/security"
)

// FilesystemBackend stores objects as files below basePath.
type FilesystemBackend struct {
	basePath string
}

func NewFilesystemBackend(basePath string) *FilesystemBackend {
	return &FilesystemBackend{basePath: basePath}
}

// Put writes to a temporary sibling and renames it into place so readers
// never observe a partially written object.
func (fs *FilesystemBackend) Put(ctx context.Context, key string, data io.Reader) error {
	filePath, err := fs.keyToPath(key)
	if err != nil {
		return fmt.Errorf("invalid storage key %s: %w", key, err)
	}
	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		logging.Errorf("[STORAGE] Failed to create directory %s: %v", dirPath, err)
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dirPath, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		logging.Errorf("[STORAGE] Failed to write data to %s: %v", filePath, err)
		return fmt.Errorf("failed to write data to %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write data to %s: %w", key, err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	return nil
}

func (fs *FilesystemBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := fs.keyToPath(key)
	if err != nil {
		return nil, fmt.Errorf("invalid storage key %s: %w", key, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file %s: %w", key, err)
	}
	return file, nil
}

func (fs *FilesystemBackend) Delete(ctx context.Context, key string) error {
	filePath, err := fs.keyToPath(key)
	if err != nil {
		return fmt.Errorf("invalid storage key %s: %w", key, err)
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (fs *FilesystemBackend) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := fs.ListWithInfo(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func (fs *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := fs.keyToPath(key)
	if err != nil {
		return false, fmt.Errorf("invalid storage key %s: %w", key, err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence of %s: %w", key, err)
	}
	return !info.IsDir(), nil
}

func (fs *FilesystemBackend) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, err := fs.Get(ctx, srcKey)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", srcKey, err)
	}
	defer src.Close()

	if err := fs.Put(ctx, dstKey, src); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", srcKey, dstKey, err)
	}
	logging.Logf("[STORAGE] Copy: %s -> %s", srcKey, dstKey)
	return nil
}

// ListWithInfo walks the directory holding prefix. Prefixes need not end on a
// directory boundary: "converted/converted-" lists matching files in
// converted/.
func (fs *FilesystemBackend) ListWithInfo(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	root, err := filepath.Abs(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if dir := prefixDir(prefix); dir != "" {
		p, err := fs.keyToPath(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid storage prefix %s: %w", prefix, err)
		}
		root = p
	}

	infos := []ObjectInfo{}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return infos, nil
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".put-") {
			return nil
		}
		key := fs.pathToKey(path)
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, ObjectInfo{
				Key:          key,
				Size:         info.Size(),
				LastModified: info.ModTime().UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
	}
	return infos, nil
}

func (fs *FilesystemBackend) GetInfo(ctx context.Context, key string) (*ObjectInfo, error) {
	filePath, err := fs.keyToPath(key)
	if err != nil {
		return nil, fmt.Errorf("invalid storage key %s: %w", key, err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get info for %s: %w", key, err)
	}
	return &ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime().UTC()}, nil
}

func (fs *FilesystemBackend) keyToPath(key string) (string, error) {
	return security.SafeJoin(fs.basePath, key)
}

func (fs *FilesystemBackend) pathToKey(path string) string {
	base, err := filepath.Abs(fs.basePath)
	if err != nil {
		base = fs.basePath
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// prefixDir returns the directory part of a listing prefix ("" for the root).
func prefixDir(prefix string) string {
	i := strings.LastIndex(prefix, "/")
	if i <= 0 {
		return ""
	}
	return prefix[:i]
}
