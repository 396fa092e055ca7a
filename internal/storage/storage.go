// Package storage defines the client-local key/value store that backs session persistence.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Storage is a small string key/value store, the client-local counterpart of
// browser local storage. Keys are read and written independently.
type Storage interface {
	// Get returns the value under key or errs.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}
