// Package remotesync keeps local copies of remote archives fresh.
package remotesync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fec-lake/internal/domain"
)

// StaleTolerance absorbs filesystem timestamp truncation and clock skew.
const StaleTolerance = time.Second

// Syncer mirrors remote objects onto the local filesystem, using the local
// file's modification time as a proxy for the remote last-modified time.
type Syncer struct {
	store  domain.ObjectStore
	logger *slog.Logger
}

// NewSyncer creates a Syncer reading from store.
func NewSyncer(store domain.ObjectStore, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{store: store, logger: logger}
}

// IsStale reports whether localPath is missing or older than remoteKey by more
// than StaleTolerance. It costs one metadata round trip.
func (s *Syncer) IsStale(ctx context.Context, localPath, remoteKey string) (bool, error) {
	info, err := s.head(ctx, remoteKey)
	if err != nil {
		return false, err
	}
	return isStale(localPath, info.LastModified)
}

// Sync downloads remoteKey to localPath unless the local copy is current.
// After a download the local modification and access times equal the remote
// last-modified time. A failed download leaves no file at localPath.
func (s *Syncer) Sync(ctx context.Context, remoteKey, localPath string) (domain.SyncResult, error) {
	info, err := s.head(ctx, remoteKey)
	if err != nil {
		return "", err
	}

	stale, err := isStale(localPath, info.LastModified)
	if err != nil {
		return "", &domain.DownloadError{Key: remoteKey, Path: localPath, Err: err}
	}
	if !stale {
		s.logger.Info("skipping download, local copy up to date", "key", remoteKey, "path", localPath)
		return domain.SyncUpToDate, nil
	}

	s.logger.Info("downloading", "key", remoteKey, "path", localPath, "last_modified", info.LastModified)
	started := time.Now()
	n, err := s.download(ctx, remoteKey, localPath, info)
	if err != nil {
		if rmErr := os.Remove(localPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("failed to remove partial download", "path", localPath, "error", rmErr)
		}
		return "", &domain.DownloadError{Key: remoteKey, Path: localPath, Err: err}
	}

	s.logger.Info("download complete", "key", remoteKey, "bytes", n, "took", time.Since(started))
	return domain.SyncDownloaded, nil
}

func (s *Syncer) head(ctx context.Context, key string) (domain.ObjectInfo, error) {
	info, err := s.store.Head(ctx, key)
	if err != nil {
		return domain.ObjectInfo{}, &domain.RemoteMetadataError{Key: key, Err: err}
	}
	return info, nil
}

func (s *Syncer) download(ctx context.Context, key, localPath string, info domain.ObjectInfo) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	f, err := os.Create(localPath) //nolint:gosec // path derived from configured raw-data root
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", localPath, err)
	}
	n, err := s.store.Download(ctx, key, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", localPath, closeErr)
	}
	if err != nil {
		return n, err
	}
	if info.Size >= 0 && n != info.Size {
		return n, fmt.Errorf("short transfer: got %d of %d bytes", n, info.Size)
	}

	if err := os.Chtimes(localPath, info.LastModified, info.LastModified); err != nil {
		return n, fmt.Errorf("set modification time: %w", err)
	}
	return n, nil
}

// isStale compares a local file's modification time against remoteModified.
func isStale(localPath string, remoteModified time.Time) (bool, error) {
	st, err := os.Stat(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", localPath, err)
	}
	return remoteModified.Sub(st.ModTime()) > StaleTolerance, nil
}
