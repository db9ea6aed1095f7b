package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/filex"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

const tempPrefix = ".upload-"

// LocalEngine keeps objects as flat files in one directory and serves them
// under a static URL prefix.
type LocalEngine struct {
	dir     string
	baseURL string
	timeout time.Duration
	logger  logging.Logger
}

// NewLocalEngine creates dir if needed.
func NewLocalEngine(dir, baseURL string, timeout time.Duration, logger logging.Logger) (*LocalEngine, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &LocalEngine{
		dir:     abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.With("engine", "local"),
	}, nil
}

func (e *LocalEngine) Name() string { return "local" }

// Dir is the absolute directory objects are written to.
func (e *LocalEngine) Dir() string { return e.dir }

func (e *LocalEngine) URL(key string) string {
	return e.baseURL + "/" + key
}

func (e *LocalEngine) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\\x00") || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: invalid key %q", common.ErrValidation, key)
	}
	p := filepath.Join(e.dir, key)
	if !filex.Within(e.dir, p) {
		return "", fmt.Errorf("%w: invalid key %q", common.ErrValidation, key)
	}
	return p, nil
}

// Store writes into a temp file, fsyncs it and renames it into place, so a
// key either names a complete object or nothing.
func (e *LocalEngine) Store(ctx context.Context, req StoreRequest) (*Descriptor, error) {
	opCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	key, ext := NewKey(req.DeclaredName)
	dst, err := e.path(key)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(e.dir, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) (*Descriptor, error) {
		_ = tmp.Close()
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			e.logger.Warn(ctx, "temp file cleanup failed", "path", tmpPath, "error", rmErr)
		}
		return nil, err
	}

	tracker := NewProgressTracker(opCtx, req.Body, req.OnProgress)
	if _, err := io.Copy(tmp, tracker); err != nil {
		return fail(classify(ctx, tracker, err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(classify(ctx, nil, err))
	}
	if err := tmp.Close(); err != nil {
		return fail(classify(ctx, nil, err))
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fail(classify(ctx, nil, err))
	}

	return &Descriptor{
		Key:       key,
		PublicURL: e.URL(key),
		Extension: ext,
		Size:      tracker.Peak(),
	}, nil
}

func (e *LocalEngine) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return classify(ctx, nil, err)
	}
	p, err := e.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return nil
}

func (e *LocalEngine) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, nil, err)
	}
	p, err := e.path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return e.objectInfo(key, info), nil
}

func (e *LocalEngine) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, nil, err)
	}
	p, err := e.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return f, nil
}

// List returns stored objects whose key starts with prefix, sorted by key.
// In-flight temp files are skipped.
func (e *LocalEngine) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, nil, err)
	}
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	var result []ObjectInfo
	for _, d := range entries {
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		result = append(result, *e.objectInfo(name, info))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (e *LocalEngine) objectInfo(key string, info fs.FileInfo) *ObjectInfo {
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		ContentType:  ct,
		LastModified: info.ModTime(),
	}
}
