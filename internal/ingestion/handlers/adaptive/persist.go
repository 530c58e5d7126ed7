package adaptive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"manifold/internal/ingestion/handlers"
)

// LoadPersisted scans handlerStoreDir for previously generated handler
// sources (named ext_handler.go by Generate) and registers each one back
// into registry via the same yaegi sandbox Generate uses, so a customer's
// synthesized handlers survive process restarts instead of being
// regenerated by the LLM on every run. Grounded on
// original_source/ingestion/crawler/file_crawler.py's
// _load_customer_handlers, which reloads a persisted handler cache once
// at crawl start. A file that fails to parse or sandbox-load is skipped
// rather than failing the whole load, since a missing handler only
// demotes that extension back to "unsupported" for this run.
func LoadPersisted(registry *handlers.Registry, handlerStoreDir string) error {
	if handlerStoreDir == "" {
		return nil
	}
	entries, err := os.ReadDir(handlerStoreDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("adaptive: read handler store: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_handler.go") {
			continue
		}
		ext := "." + strings.TrimSuffix(entry.Name(), "_handler.go")

		code, err := os.ReadFile(filepath.Join(handlerStoreDir, entry.Name()))
		if err != nil {
			continue
		}
		className := "Generated" + sanitizeIdent(ext) + "Handler"
		h, err := loadInSandbox(string(code), className)
		if err != nil {
			continue
		}
		registry.Register(ext, h)
	}
	return nil
}
