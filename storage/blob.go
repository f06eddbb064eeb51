package storage

import (
	"context"
	"path/filepath"
	"strings"
)

// Namespace 区分音频与封面两类对象
type Namespace string

const (
	NamespaceAudio Namespace = "audio"
	NamespaceCover Namespace = "cover"
)

// BlobStore stores opaque payloads addressed by namespace and key.
type BlobStore interface {
	// Put stores data and returns a URL the object can be fetched from.
	Put(ctx context.Context, ns Namespace, key, contentType string, data []byte) (string, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, ns Namespace, key string) error
}

// ObjectName is the bucket-relative object name for a namespace/key pair.
func ObjectName(ns Namespace, key string) string {
	return string(ns) + "/" + strings.TrimPrefix(key, "/")
}

// ContentTypeFor returns declared when set, otherwise a type inferred from the extension.
func ContentTypeFor(filename, declared string) string {
	if declared != "" {
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
