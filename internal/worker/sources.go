package worker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/eventsweep/internal/model"
	"gopkg.in/yaml.v3"
)

// sourceRow is one entry of a source list before validation
type sourceRow struct {
	Type            string `yaml:"type"`
	URL             string `yaml:"url"`
	SourceName      string `yaml:"source_name"`
	DefaultLocation string `yaml:"default_location"`
}

// ReadSourcesFromFile loads a source list. Files ending in .yaml or .yml are
// read as a YAML list; anything else as CSV with a header row.
func ReadSourcesFromFile(filePath string) ([]model.Source, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var rows []sourceRow
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		rows, err = readYAMLRows(file)
	default:
		rows, err = readCSVRows(file)
	}
	if err != nil {
		return nil, err
	}

	return validateRows(rows), nil
}

func readYAMLRows(r io.Reader) ([]sourceRow, error) {
	var rows []sourceRow
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return rows, nil
}

func readCSVRows(r io.Reader) ([]sourceRow, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"type", "url"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column in header", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []sourceRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, sourceRow{
			Type:            field(record, "type"),
			URL:             field(record, "url"),
			SourceName:      field(record, "source_name"),
			DefaultLocation: field(record, "default_location"),
		})
	}

	return rows, nil
}

// validateRows drops incomplete, unknown and repeated rows
func validateRows(rows []sourceRow) []model.Source {
	sources := make([]model.Source, 0, len(rows))
	seen := make(map[string]bool)

	for i, row := range rows {
		url := strings.TrimSpace(row.URL)
		if strings.TrimSpace(row.Type) == "" || url == "" {
			slog.Debug("skipping incomplete source row", "row", i+1)
			continue
		}

		kind, ok := model.ParseSourceKind(row.Type)
		if !ok {
			slog.Warn("skipping source with unknown type", "row", i+1, "type", row.Type, "url", url)
			continue
		}

		key := string(kind) + " " + url
		if seen[key] {
			continue
		}
		seen[key] = true

		name := strings.TrimSpace(row.SourceName)
		if name == "" {
			name = model.UnknownSourceName
		}

		sources = append(sources, model.Source{
			Kind:            kind,
			URL:             url,
			Name:            name,
			DefaultLocation: strings.TrimSpace(row.DefaultLocation),
		})
	}

	return sources
}
