package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ArtifactExt is the file extension of every columnar artifact.
const ArtifactExt = "parquet"

// Job is one (category, year, remote key) unit of work producing one artifact.
type Job struct {
	Category  string `yaml:"category" json:"category"`
	Year      int    `yaml:"year" json:"year"`
	RemoteKey string `yaml:"key" json:"key"`
}

// Name returns the deterministic artifact base name, e.g. "committee_master_2024".
func (j Job) Name() string {
	return fmt.Sprintf("%s_%d", j.Category, j.Year)
}

// ArtifactFile returns the artifact file name, e.g. "committee_master_2024.parquet".
func (j Job) ArtifactFile() string {
	return j.Name() + "." + ArtifactExt
}

// Validate checks that the job is well-formed.
func (j Job) Validate() error {
	if j.Category == "" {
		return fmt.Errorf("job category is required")
	}
	if j.Year <= 0 {
		return fmt.Errorf("job %s: year must be positive", j.Category)
	}
	if j.RemoteKey == "" {
		return fmt.Errorf("job %s: key is required", j.Name())
	}
	if path.IsAbs(j.RemoteKey) {
		return fmt.Errorf("job %s: key %q must be relative", j.Name(), j.RemoteKey)
	}
	if c := path.Clean(j.RemoteKey); c == ".." || strings.HasPrefix(c, "../") {
		return fmt.Errorf("job %s: key %q escapes the raw data directory", j.Name(), j.RemoteKey)
	}
	return nil
}

// SyncResult reports what Sync did for a remote key.
type SyncResult string

// SyncResult values.
const (
	SyncUpToDate   SyncResult = "up_to_date"
	SyncDownloaded SyncResult = "downloaded"
)

// ObjectInfo is the metadata of a remote object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64 // -1 when unknown
}
