package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no object exists at a key
var ErrNotFound = errors.New("storage: object not found")

// Metadata describes a stored verification artifact
type Metadata struct {
	ContentType    string            `json:"contentType,omitempty"`
	TicketID       string            `json:"ticketId,omitempty"`
	RunID          string            `json:"runId,omitempty"`
	CriterionIndex *int              `json:"criterionIndex,omitempty"`
	CapturedAt     time.Time         `json:"capturedAt,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`
}

// FileInfo contains information about a stored object
type FileInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	ContentType string    `json:"contentType,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Storage holds screenshots and result documents produced by verification runs
type Storage interface {
	// Put stores content at the given key with optional metadata
	Put(ctx context.Context, key string, content []byte, metadata *Metadata) error

	// Get retrieves content from the given key
	Get(ctx context.Context, key string) ([]byte, error)

	// GetInfo retrieves object information without content
	GetInfo(ctx context.Context, key string) (*FileInfo, error)

	// Exists checks if an object exists at the given key
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object at the given key
	Delete(ctx context.Context, key string) error

	// List returns all keys matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
)
