package simulate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/coachlens/internal/domain/pipeline"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// WritePopulation encodes inputs as an indented JSON array.
func WritePopulation(w io.Writer, ins []pipeline.Input) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ins); err != nil {
		return fmt.Errorf("encode population: %w", err)
	}
	return nil
}

// ReadPopulation decodes a JSON array of inputs.
func ReadPopulation(r io.Reader) ([]pipeline.Input, error) {
	var ins []pipeline.Input
	if err := json.NewDecoder(r).Decode(&ins); err != nil {
		return nil, fmt.Errorf("decode population: %w", err)
	}
	return ins, nil
}

// SavePopulation writes inputs to path, creating parent directories.
func SavePopulation(path string, ins []pipeline.Input) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WritePopulation(f, ins)
}

// LoadPopulation reads inputs from path.
func LoadPopulation(path string) ([]pipeline.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open population: %w", err)
	}
	defer f.Close()
	return ReadPopulation(f)
}
