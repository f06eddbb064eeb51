package upload

import (
	"context"

	"flacshare/core/audio"
	"flacshare/model"
	"flacshare/storage"
)

// BlobStore is the object storage the coordinator writes audio and cover blobs to.
type BlobStore = storage.BlobStore

// MetadataStore persists catalog records.
type MetadataStore interface {
	Insert(ctx context.Context, record *model.CatalogRecord) (*model.CatalogRecord, error)
}

// Analyzer extracts stats and initial fields from a selected file.
type Analyzer interface {
	Analyze(ctx context.Context, file *model.FileHandle) (*audio.Analysis, error)
}

// OrphanRecorder remembers blobs a failed rollback left behind so they can be swept later.
type OrphanRecorder interface {
	RecordOrphan(ctx context.Context, ns storage.Namespace, key string, cause error) error
}
