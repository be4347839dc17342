package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bondtape/internal/errors"
	"bondtape/pkg/contracts/domain"
)

// FileSource serves feed rows from local JSON dumps, one file per segment
// (standard.json, rule144a.json). Each file holds an array of raw events in
// the provider's field naming. Useful for replaying archived feed extracts
// and as the default source for the CLI.
type FileSource struct {
	dir string
}

// NewFileSource creates a source reading from dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Fetch returns the segment's rows for the requested CUSIPs. A missing
// segment file is a feed error; the caller's retry policy applies.
func (s *FileSource) Fetch(_ context.Context, segment domain.FeedType, cusips []string) ([]domain.RawTradeEvent, error) {
	path := filepath.Join(s.dir, string(segment)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFeedError(fmt.Sprintf("read feed segment file %s", path), err)
	}

	var all []domain.RawTradeEvent
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("decode feed segment file %s", path), err)
	}

	wanted := make(map[string]bool, len(cusips))
	for _, c := range cusips {
		wanted[c] = true
	}

	out := make([]domain.RawTradeEvent, 0)
	for _, e := range all {
		if wanted[e.CUSIP] {
			out = append(out, e)
		}
	}
	return out, nil
}

// LoadInstruments reads the instrument reference table from a JSON file
// holding an array of reference rows.
func LoadInstruments(path string) ([]Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("read reference table %s", path), err)
	}
	var rows []Instrument
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("decode reference table %s", path), err)
	}
	return rows, nil
}
