package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// cadHeaderBytes bounds how much of a STEP (ISO 10303-21) file is scanned
// for its header section; part metadata always appears well within this.
const cadHeaderBytes = 5000

// extractCADHeader reads a STEP file's HEADER section (FILE_DESCRIPTION,
// FILE_NAME, FILE_SCHEMA) and renders it as searchable text. STEP files
// have no embeddable geometry text, so this is the entire extraction.
func extractCADHeader(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > cadHeaderBytes {
		data = data[:cadHeaderBytes]
	}
	lines := strings.Split(string(data), "\n")

	var description, partNumber, author, organization, schema string
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.Contains(line, "FILE_DESCRIPTION") && i+1 < len(lines):
			description = strings.Trim(strings.TrimSpace(lines[i+1]), "();' ")
		case strings.Contains(line, "FILE_NAME"):
			parts := strings.Split(line, "'")
			if len(parts) >= 3 {
				partNumber = strings.TrimSuffix(strings.TrimSuffix(parts[1], ".step"), ".stp")
			}
			if len(parts) >= 7 {
				author = parts[5]
			}
			if len(parts) >= 9 {
				organization = parts[7]
			}
		case strings.Contains(line, "FILE_SCHEMA"):
			if open := strings.Index(line, "("); open >= 0 {
				if fields := strings.Split(line[open:], "'"); len(fields) >= 2 {
					schema = fields[1]
				}
			}
		}
	}

	base := filepath.Base(path)
	if partNumber == "" {
		partNumber = strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
	}
	if organization == "" {
		organization = "unknown"
	}
	if author == "" {
		author = "unknown"
	}
	if schema == "" {
		schema = "unspecified"
	}
	if description == "" {
		description = "3D CAD model"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "3D CAD MODEL: %s\n\n", base)
	sb.WriteString("FILE TYPE: STEP (ISO 10303-21) 3D engineering model\n")
	fmt.Fprintf(&sb, "PART NUMBER: %s\n", partNumber)
	fmt.Fprintf(&sb, "ORGANIZATION: %s\n", organization)
	fmt.Fprintf(&sb, "AUTHOR: %s\n", author)
	fmt.Fprintf(&sb, "SCHEMA: %s\n\n", schema)
	fmt.Fprintf(&sb, "DESCRIPTION: %s\n", description)
	return sb.String(), nil
}
