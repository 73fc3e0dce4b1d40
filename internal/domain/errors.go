// Package domain defines core types, interfaces, and errors for the bulk-data pipeline.
package domain

import (
	"fmt"
	"time"
)

// UnknownCategoryError indicates a category has no registered schema.
type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q", e.Category)
}

// RemoteMetadataError indicates the remote object is missing or the store is unreachable.
type RemoteMetadataError struct {
	Key string
	Err error
}

func (e *RemoteMetadataError) Error() string {
	return fmt.Sprintf("fetch metadata for %q: %v", e.Key, e.Err)
}

func (e *RemoteMetadataError) Unwrap() error { return e.Err }

// DownloadError indicates a transfer failed. No partial file remains at Path.
type DownloadError struct {
	Key  string
	Path string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %q to %s: %v", e.Key, e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// CorruptArchiveError indicates the file is not a readable ZIP container.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive %s: %v", e.Path, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Err }

// UnsafePathError indicates an archive entry would escape the extraction root.
type UnsafePathError struct {
	Archive string
	Entry   string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe path %q in archive %s", e.Entry, e.Archive)
}

// NoTableFoundError indicates an extracted archive holds no .txt table.
type NoTableFoundError struct {
	Dir string
}

func (e *NoTableFoundError) Error() string {
	return fmt.Sprintf("no .txt table found in %s", e.Dir)
}

// TypeCoercionError indicates a field could not be coerced to its column type.
// Row is 1-based and counts physical lines of the input file.
type TypeCoercionError struct {
	Column string
	Row    int64
	Value  string
	Type   string
	Err    error
}

func (e *TypeCoercionError) Error() string {
	msg := fmt.Sprintf("row %d column %s: cannot parse %q as %s", e.Row, e.Column, e.Value, e.Type)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeCoercionError) Unwrap() error { return e.Err }

// ConversionError wraps any read, parse, or write failure of the converter.
// Column is empty when the failure is not tied to a column.
type ConversionError struct {
	File   string
	Column string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("convert %s (column %s): %v", e.File, e.Column, e.Err)
	}
	return fmt.Sprintf("convert %s: %v", e.File, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// VerificationError indicates a written artifact does not match its schema or row count.
type VerificationError struct {
	Path    string
	Message string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify %s: %s", e.Path, e.Message)
}

// JobError records where a job failed. State is the last state the job
// reached before the failure.
type JobError struct {
	Job   Job
	State JobState
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s (%s) failed after %s: %v", e.Job.Name(), e.Job.RemoteKey, e.State, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// RunError summarizes a run in which at least one job failed.
type RunError struct {
	RunID  string
	Failed int
	Total  int
	Took   time.Duration
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s: %d of %d jobs failed", e.RunID, e.Failed, e.Total)
}
