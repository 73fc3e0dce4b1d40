package domain

import (
	"context"
	"io"
)

// ObjectStore is the remote blob store holding the bulk archives.
type ObjectStore interface {
	// Head returns the metadata of key. It fails if the key does not exist.
	Head(ctx context.Context, key string) (ObjectInfo, error)
	// Download writes the full object to w and returns the number of bytes copied.
	Download(ctx context.Context, key string, w io.Writer) (int64, error)
}

// SchemaLookup resolves a category to its schema.
type SchemaLookup interface {
	Lookup(category string) (Schema, error)
}

// ArtifactVerifier checks a written artifact against its schema and row count.
type ArtifactVerifier interface {
	Verify(ctx context.Context, path string, schema Schema, wantRows int64) error
}
