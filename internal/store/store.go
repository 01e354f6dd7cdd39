// Package store provides the document-store contract the engine depends on:
// get/update by id and query by equality filter, with per-document atomic
// updates. The engine assumes nothing else about the backing database.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("record not found")

// Filter is a set of equality constraints on top-level document fields.
type Filter map[string]any

// Document is a raw stored record.
type Document struct {
	ID   string
	Data []byte
}

// Store is the record-store contract. Implementations must make FindByID /
// Put / Update atomic per document; cross-document consistency is not
// assumed anywhere in the engine.
type Store interface {
	// FindByID decodes the document into out. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, collection, id string, out any) error

	// Put creates or fully replaces a document.
	Put(ctx context.Context, collection, id string, doc any) error

	// Update merges the given fields into the stored document atomically.
	// A nil field value deletes the key. Returns ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Query returns all documents of the collection matching every filter
	// constraint. An empty filter returns the whole collection.
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// DeleteByQuery removes every matching document and reports how many.
	DeleteByQuery(ctx context.Context, collection string, filter Filter) (int, error)

	// Close releases the underlying database.
	Close() error
}
