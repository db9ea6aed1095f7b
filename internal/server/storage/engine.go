// Package storage turns an incoming byte stream into a stored object and a
// descriptor (key, public URL, observed size). Engines never see owners or
// display names; they only know keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/google/uuid"
)

// StoreRequest is one upload handed to an Engine.
type StoreRequest struct {
	Body io.Reader
	// DeclaredName is only used to derive the key extension.
	DeclaredName string
	ContentType  string
	// OnProgress, if set, receives the cumulative number of bytes consumed
	// from Body.
	OnProgress func(transferred int64)
}

// Descriptor describes a stored object.
type Descriptor struct {
	Key       string
	PublicURL string
	Extension string
	// Size is the peak transferred byte count observed while storing.
	Size int64
}

// ObjectInfo is what Stat and List report for an existing object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Engine stores and removes objects. Exactly one engine is active per
// process. Every method is bounded by the engine's operation timeout.
type Engine interface {
	// Store streams req.Body into a fresh key. It fails with
	// common.ErrStorageUnavailable or common.ErrStreamError and removes any
	// partial object it wrote.
	Store(ctx context.Context, req StoreRequest) (*Descriptor, error)
	// Remove deletes key. A missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Stat returns common.ErrNotFound for missing keys.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	URL(key string) string
	Name() string
}

// SignedURLProvider is implemented by engines that can hand out
// time-limited download URLs.
type SignedURLProvider interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,16}$`)

// NewKey returns a collision-free key for an object uploaded under
// declaredName, and the lowercased extension the key ends with. Extensions
// that are not short alphanumerics are dropped.
func NewKey(declaredName string) (key, ext string) {
	ext = strings.ToLower(filepath.Ext(declaredName))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return uuid.New().String() + ext, ext
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classify maps a failure to the storage error taxonomy. A failing source
// or a parent context that went away is the client's problem; anything
// else, including our own timeout, is the backend's.
func classify(parent context.Context, tracker *ProgressTracker, err error) error {
	if errors.Is(err, common.ErrStreamError) || errors.Is(err, common.ErrStorageUnavailable) {
		return err
	}
	if (tracker != nil && tracker.SourceErr() != nil) || parent.Err() != nil {
		return fmt.Errorf("%w: %w", common.ErrStreamError, err)
	}
	return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
}

// cleanupContext detaches from a possibly cancelled request so that
// compensating deletes still run.
func cleanupContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}
