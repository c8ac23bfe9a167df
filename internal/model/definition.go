package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/modelpush/modelpush/internal/workspace"
)

const (
	// binaryProbeSize is how much of a file the NUL scan inspects.
	binaryProbeSize = 8 * 1024

	// encodeWorkers bounds the parallel file reads during payload assembly.
	encodeWorkers = 8
)

// definitionExtensions are the file types shipped in the definition
// payload. Everything else in the model folder stays local. The platform
// sidecar rides along because the service round-trips it with the item.
var definitionExtensions = map[string]bool{
	".tmdl":     true,
	".json":     true,
	".pbism":    true,
	".pbir":     true,
	".platform": true,
}

// BuildDefinition walks the model folder and assembles the definition
// payload: one inline-base64 part per matching text file, in deterministic
// path order. Binary files are skipped with a warning, never uploaded.
func BuildDefinition(ctx context.Context, root string, logger *slog.Logger) (workspace.Definition, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := collectDefinitionFiles(root)
	if err != nil {
		return workspace.Definition{}, err
	}

	if len(files) == 0 {
		return workspace.Definition{}, fmt.Errorf("model: no definition files found under %s", root)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(encodeWorkers)

	// Indexed by file position so the part order survives parallel encoding.
	parts := make([]*workspace.DefinitionPart, len(files))

	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Join(root, rel))
			if err != nil {
				return fmt.Errorf("model: reading %s: %w", rel, err)
			}

			if isBinary(data) {
				logger.Warn("skipping binary file in model folder", slog.String("path", rel))
				return nil
			}

			parts[i] = &workspace.DefinitionPart{
				Path:        partPath(rel),
				Payload:     base64.StdEncoding.EncodeToString(data),
				PayloadType: workspace.PayloadTypeInlineBase64,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return workspace.Definition{}, err
	}

	def := workspace.Definition{Parts: make([]workspace.DefinitionPart, 0, len(parts))}
	for _, part := range parts {
		if part != nil {
			def.Parts = append(def.Parts, *part)
		}
	}

	if len(def.Parts) == 0 {
		return workspace.Definition{}, fmt.Errorf("model: every definition file under %s was skipped as binary", root)
	}

	logger.Info("assembled model definition",
		slog.String("dir", root),
		slog.Int("parts", len(def.Parts)),
		slog.Int("skipped", len(files)-len(def.Parts)),
	)

	return def, nil
}

// collectDefinitionFiles walks the model folder and returns the sorted
// relative paths of payload candidates. Dot-directories (.git, .pbi local
// state) are skipped; the only dot-file included is the platform sidecar.
func collectDefinitionFiles(root string) ([]string, error) {
	var files []string

	walkFn := func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		name := d.Name()

		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasPrefix(name, ".") && name != platformFileName {
			return nil
		}

		if !definitionExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, err)
		}

		files = append(files, rel)

		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, fmt.Errorf("model: walking %s: %w", root, err)
	}

	sort.Strings(files)

	return files, nil
}

// isBinary reports whether the file content looks binary: a NUL byte
// anywhere in the first 8 KiB.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > binaryProbeSize {
		probe = probe[:binaryProbeSize]
	}

	return bytes.IndexByte(probe, 0) >= 0
}

// partPath converts a local relative path to the wire form: forward
// slashes, NFC-normalized Unicode.
func partPath(rel string) string {
	return norm.NFC.String(filepath.ToSlash(rel))
}
