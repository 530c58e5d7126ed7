package orchestrator

import (
	"mime"
	"os"
	"path/filepath"
	"strings"

	"manifold/internal/ingestion/types"
)

// FolderConfig pairs a folder to crawl with the category it's
// pre-assigned to, matching original_source/ingestion/orchestrator.py's
// FolderConfig dataclass.
type FolderConfig struct {
	Path          string
	PreAssignedCategory string
	Recursive     bool
}

// crawlFolders walks every configured folder and returns every
// discovered FileDescriptor, tagging each with its folder's
// pre-assigned category. Hidden files/directories (leading ".") are
// skipped, matching file_crawler.py's _walk_files.
func crawlFolders(folders []FolderConfig, maxFileSizeBytes int64, maxDepth int) []types.FileDescriptor {
	var out []types.FileDescriptor
	for _, f := range folders {
		descs := walkFiles(f.Path, f.Recursive, maxDepth, 0, maxFileSizeBytes)
		for i := range descs {
			descs[i].PreAssignedCat = f.PreAssignedCategory
		}
		out = append(out, descs...)
	}
	return out
}

func walkFiles(root string, recursive bool, maxDepth, depth int, maxFileSizeBytes int64) []types.FileDescriptor {
	if depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var out []types.FileDescriptor
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		full := filepath.Join(root, entry.Name())

		if entry.IsDir() {
			if recursive {
				out = append(out, walkFiles(full, recursive, maxDepth, depth+1, maxFileSizeBytes)...)
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > maxFileSizeBytes {
			continue // oversized files are excluded at crawl time
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		out = append(out, types.FileDescriptor{
			Path:             full,
			Name:             entry.Name(),
			Extension:        ext,
			SizeBytes:        info.Size(),
			ModifiedAt:       info.ModTime(),
			MIMEHint:         mime.TypeByExtension(ext),
			ExtractionStatus: types.StatusPending,
		})
	}
	return out
}
