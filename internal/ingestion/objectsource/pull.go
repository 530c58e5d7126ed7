// Package objectsource pulls a customer's raw files from an object store
// into a local scratch directory ahead of the crawl stage, implementing
// the "Object store" external interface (list_objects/get_object) rather
// than a bespoke client: objectstore.ObjectStore is already bucket-scoped,
// so a customer's ingestion bucket maps directly onto one Pull call.
package objectsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"manifold/internal/objectstore"
)

// Pull lists every object in store and downloads it under scratchDir,
// preserving the object key as a relative path so downstream crawling
// sees the same folder structure the customer uploaded. Directory-prefix
// entries (returned when List is called with a delimiter) are skipped;
// Pull always lists flat so every object key becomes a file.
func Pull(ctx context.Context, store objectstore.ObjectStore, scratchDir string) (int, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return 0, fmt.Errorf("objectsource: create scratch dir: %w", err)
	}

	count := 0
	token := ""
	for {
		res, err := store.List(ctx, objectstore.ListOptions{ContinuationToken: token})
		if err != nil {
			return count, fmt.Errorf("objectsource: list objects: %w", err)
		}

		for _, obj := range res.Objects {
			if obj.IsPrefix || strings.HasSuffix(obj.Key, "/") {
				continue
			}
			if err := pullOne(ctx, store, scratchDir, obj.Key); err != nil {
				return count, err
			}
			count++
		}

		if !res.IsTruncated || res.NextContinuationToken == "" {
			break
		}
		token = res.NextContinuationToken
	}
	return count, nil
}

func pullOne(ctx context.Context, store objectstore.ObjectStore, scratchDir, key string) error {
	localPath := filepath.Join(scratchDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("objectsource: create dir for %s: %w", key, err)
	}

	rc, _, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("objectsource: get %s: %w", key, err)
	}
	defer rc.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("objectsource: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("objectsource: write %s: %w", localPath, err)
	}
	return nil
}
