package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"clinicalrag/internal/apperr"
	"clinicalrag/internal/objectstore"
)

const checkpointKey = ".ingest_checkpoint"

const checkpointEvery = 100

// loadCheckpoint reads the newline-delimited set of already-processed image
// ids from store. A missing checkpoint file is not an error: it means this
// is the first run against this root.
func loadCheckpoint(ctx context.Context, store objectstore.ObjectStore) (map[string]bool, error) {
	r, _, err := store.Get(ctx, checkpointKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return map[string]bool{}, nil
		}
		return nil, apperr.WrapDependencyUnavailable(err, "reading ingest checkpoint")
	}
	defer r.Close()

	set := map[string]bool{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			set[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.WrapData(err, "parsing ingest checkpoint")
	}
	return set, nil
}

// saveCheckpoint persists the updated set atomically. ObjectStore.Put writes
// to a temp path and renames into place (LocalStore) or is itself atomic
// (S3 PutObject), so a reader never observes a torn checkpoint.
func saveCheckpoint(ctx context.Context, store objectstore.ObjectStore, set map[string]bool) error {
	var buf bytes.Buffer
	for id := range set {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}
	if _, err := store.Put(ctx, checkpointKey, io.NopCloser(&buf), objectstore.PutOptions{ContentType: "text/plain"}); err != nil {
		return apperr.WrapDependencyUnavailable(err, "writing ingest checkpoint")
	}
	return nil
}
