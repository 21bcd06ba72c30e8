package health

import (
	"context"
	"fmt"

	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// StorageChecker verifies the relational store answers queries.
type StorageChecker struct {
	store storage.Storage
}

// NewStorageChecker creates a storage health checker.
func NewStorageChecker(store storage.Storage) *StorageChecker {
	return &StorageChecker{store: store}
}

// Name returns the checker name.
func (c *StorageChecker) Name() string {
	return "storage"
}

// Check runs a cheap query against the store.
func (c *StorageChecker) Check(ctx context.Context) error {
	if _, err := c.store.Users().Count(ctx); err != nil {
		return fmt.Errorf("storage check: %w", err)
	}
	return nil
}
