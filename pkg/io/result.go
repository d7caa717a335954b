package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/engine"
)

// WriteRun encodes a finished optimization run as indented JSON.
func WriteRun(run *engine.OptimizationRun, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportRun writes an optimization run to a JSON file at path.
func ExportRun(run *engine.OptimizationRun, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteRun(run, f)
}

// ReadRun decodes an optimization run from r.
func ReadRun(r io.Reader) (*engine.OptimizationRun, error) {
	var run engine.OptimizationRun
	if err := json.NewDecoder(r).Decode(&run); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &run, nil
}

// ImportRun reads a JSON file at path and returns the decoded run.
func ImportRun(path string) (*engine.OptimizationRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadRun(f)
}
