// Package results persists detailed per-case records and reconciles prior
// runs with fresh ones for incremental verification.
package results

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/evalops/deployverify/internal/metrics"
	"github.com/evalops/deployverify/internal/models"
)

// Read loads a detailed results file (one QueryResult JSON per line).
// A missing file yields an empty set, so a first incremental run behaves
// like a plain run.
func Read(path string) ([]*models.QueryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var out []*models.QueryResult
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r models.QueryResult
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("results: %s line %d: %w", path, lineNum, err)
		}
		out = append(out, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("results: read %s: %w", path, err)
	}
	return out, nil
}

// Write saves the result set as JSONL, one record per line, in the order
// given.
func Write(path string, rs []*models.QueryResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("results: create %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range rs {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("results: encode %s: %w", r.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("results: flush %s: %w", path, err)
	}
	return nil
}

// WriteSummary saves the aggregated summary as indented JSON.
func WriteSummary(path string, s *metrics.Summary) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("results: marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", path, err)
	}
	return nil
}
