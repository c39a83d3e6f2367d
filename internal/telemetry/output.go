package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// OutputManager streams cycle records to telemetry.csv in the output
// directory. A nil OutputManager is valid and discards everything, so
// callers never need to guard the disabled case.
type OutputManager struct {
	file          *os.File
	headerWritten bool
}

// NewOutputManager creates the output directory and opens the CSV
// stream. Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating telemetry.csv: %w", err)
	}
	return &OutputManager{file: f}, nil
}

// Record appends one cycle record, writing the header on first use.
func (om *OutputManager) Record(rec CycleRecord) error {
	if om == nil {
		return nil
	}
	rows := []CycleRecord{rec}
	if !om.headerWritten {
		om.headerWritten = true
		return gocsv.MarshalFile(&rows, om.file)
	}
	return gocsv.MarshalWithoutHeaders(&rows, om.file)
}

// Close flushes and closes the CSV stream.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return om.file.Close()
}
