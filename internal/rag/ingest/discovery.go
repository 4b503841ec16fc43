package ingest

import (
	"context"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"clinicalrag/internal/apperr"
	"clinicalrag/internal/objectstore"
)

// maxImageBytes is the discovery size cutoff (spec: 100 MiB); a var rather
// than a const so tests can shrink it instead of writing huge fixtures.
var maxImageBytes int64 = 100 * 1024 * 1024

// pathPattern matches the canonical MIMIC-CXR layout .../pXX/pXXXXXXXX/sXXXXXXXX/{image_id}.dcm
var pathPattern = regexp.MustCompile(`p\d{2}/(p\d+)/(s\d+)/([^/]+)\.dcm$`)

// parsePath extracts {subject_id, study_id, image_id} from a canonical DICOM
// path. ok is false for any path that doesn't match the layout, which the
// caller treats as a non-fatal skip rather than an ingestion error.
func parsePath(path string) (subjectID, studyID, imageID string, ok bool) {
	m := pathPattern.FindStringSubmatch(filepath.ToSlash(path))
	if m == nil {
		return "", "", "", false
	}
	return m[1], m[2], m[3], true
}

// Discover recursively walks root for .dcm files no larger than 100 MiB,
// parsing identifiers from each path. filteredLarge counts files skipped
// only for exceeding the size limit.
func Discover(ctx context.Context, root string) (images []DiscoveredImage, filteredLarge int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".dcm") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxImageBytes {
			filteredLarge++
			return nil
		}
		subjectID, studyID, imageID, ok := parsePath(path)
		if !ok {
			return nil
		}
		images = append(images, DiscoveredImage{
			SubjectID: subjectID,
			StudyID:   studyID,
			ImageID:   imageID,
			FilePath:  path,
		})
		return nil
	})
	if err != nil {
		return nil, 0, apperr.WrapInternal(err, "discovering DICOM files under %s", root)
	}
	return images, filteredLarge, nil
}

// DiscoverObjectStore is the ObjectStore-backed equivalent of Discover, used
// when Config.Source is an s3://bucket/prefix root rather than a local
// directory (spec's ingestion root may be either).
func DiscoverObjectStore(ctx context.Context, store objectstore.ObjectStore, prefix string) (images []DiscoveredImage, filteredLarge int, err error) {
	res, err := store.List(ctx, objectstore.ListOptions{Prefix: prefix})
	if err != nil {
		return nil, 0, apperr.WrapDependencyUnavailable(err, "listing object store prefix %s", prefix)
	}
	for _, obj := range res.Objects {
		if !strings.HasSuffix(strings.ToLower(obj.Key), ".dcm") {
			continue
		}
		if obj.Size > maxImageBytes {
			filteredLarge++
			continue
		}
		subjectID, studyID, imageID, ok := parsePath(obj.Key)
		if !ok {
			continue
		}
		images = append(images, DiscoveredImage{
			SubjectID: subjectID,
			StudyID:   studyID,
			ImageID:   imageID,
			FilePath:  obj.Key,
		})
	}
	return images, filteredLarge, nil
}
