// Package model reads a local semantic-model folder: the platform metadata
// sidecar carrying the durable logical id, the name the model declares in
// its own source, and the definition payload uploaded to the workspace.
package model

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelpush/modelpush/internal/workspace"
)

// platformFileName is the metadata sidecar at the model root.
const platformFileName = ".platform"

// Model is what the deploy flow needs to know about a local model folder
// before talking to the workspace.
type Model struct {
	// Root is the model folder path as given by the caller.
	Root string

	// LogicalID is the durable identifier from the platform metadata,
	// stable across renames. Empty when the sidecar is absent.
	LogicalID string

	// PlatformName is the display name recorded in the platform metadata.
	PlatformName string

	// DeclaredName is the name the model's own definition source declares.
	DeclaredName string
}

// platformFile is the on-disk shape of the metadata sidecar.
type platformFile struct {
	Metadata struct {
		Type        string `json:"type"`
		DisplayName string `json:"displayName"`
	} `json:"metadata"`
	Config struct {
		LogicalID string `json:"logicalId"`
	} `json:"config"`
}

// Read inspects a local model folder. The platform sidecar and the declared
// name are both optional: absence leaves the fields empty and the caller
// decides how to resolve a deployable name.
func Read(dir string, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("model: %s is not a directory", dir)
	}

	m := &Model{Root: dir}

	meta, err := readPlatform(filepath.Join(dir, platformFileName))

	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("model folder has no platform metadata", slog.String("dir", dir))
	case err != nil:
		logger.Warn("ignoring unusable platform metadata",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	default:
		m.LogicalID = meta.Config.LogicalID
		m.PlatformName = meta.Metadata.DisplayName

		if meta.Metadata.Type != "" && meta.Metadata.Type != workspace.ItemTypeSemanticModel {
			logger.Warn("platform metadata declares a different item type",
				slog.String("dir", dir),
				slog.String("type", meta.Metadata.Type),
			)
		}
	}

	m.DeclaredName = declaredName(dir)

	logger.Debug("read model folder",
		slog.String("dir", dir),
		slog.String("logical_id", m.LogicalID),
		slog.String("platform_name", m.PlatformName),
		slog.String("declared_name", m.DeclaredName),
	)

	return m, nil
}

func readPlatform(path string) (*platformFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta platformFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", platformFileName, err)
	}

	return &meta, nil
}

// declaredName extracts the name the model declares for itself in its TMDL
// source: the database name when present, the model name otherwise.
func declaredName(root string) string {
	probes := []struct {
		file    string
		keyword string
	}{
		{filepath.Join("definition", "database.tmdl"), "database"},
		{filepath.Join("definition", "model.tmdl"), "model"},
	}

	for _, probe := range probes {
		if name := scanTMDLName(filepath.Join(root, probe.file), probe.keyword); name != "" {
			return name
		}
	}

	return ""
}

// scanTMDLName finds the first top-level `<keyword> <name>` declaration.
// Declarations sit at column zero in TMDL; indented lines are properties
// and never match. Names with spaces are single-quoted in the source.
func scanTMDLName(path, keyword string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		rest, ok := strings.CutPrefix(line, keyword+" ")
		if !ok {
			continue
		}

		return strings.Trim(strings.TrimSpace(rest), "'")
	}

	return ""
}
