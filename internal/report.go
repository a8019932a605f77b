package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Import outcomes recorded in a report.
const (
	ImportStatusOK        = "ok"
	ImportStatusFailed    = "failed"
	ImportStatusDuplicate = "duplicate"
)

// ImportReportEntry records the outcome of importing one file.
type ImportReportEntry struct {
	File        string `yaml:"file"`
	Format      string `yaml:"format,omitempty"`
	Status      string `yaml:"status"`
	StoryID     string `yaml:"story_id,omitempty"`
	StoryName   string `yaml:"story_name,omitempty"`
	Output      string `yaml:"output,omitempty"`
	Characters  int    `yaml:"characters,omitempty"`
	Scenarios   int    `yaml:"scenarios,omitempty"`
	LoreEntries int    `yaml:"lore_entries,omitempty"`
	HasImage    bool   `yaml:"has_image,omitempty"`
	DuplicateOf string `yaml:"duplicate_of,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// ImportReport accumulates the per-file outcomes of a bulk import.
type ImportReport struct {
	GeneratedAt time.Time           `yaml:"generated_at"`
	Entries     []ImportReportEntry `yaml:"entries"`
}

// NewImportReport returns an empty report stamped with the current time.
func NewImportReport() *ImportReport {
	return &ImportReport{
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Entries:     make([]ImportReportEntry, 0),
	}
}

// AddSuccess records an imported story.
func (r *ImportReport) AddSuccess(file, format, output string, story *Story, hasImage bool) {
	r.Entries = append(r.Entries, ImportReportEntry{
		File:        file,
		Format:      format,
		Status:      ImportStatusOK,
		StoryID:     story.ID,
		StoryName:   story.Name,
		Output:      output,
		Characters:  len(story.Characters),
		Scenarios:   len(story.Scenarios),
		LoreEntries: len(story.DynamicEntries),
		HasImage:    hasImage,
	})
}

// AddFailure records a file that could not be imported.
func (r *ImportReport) AddFailure(file string, err error) {
	r.Entries = append(r.Entries, ImportReportEntry{
		File:   file,
		Status: ImportStatusFailed,
		Error:  err.Error(),
	})
}

// AddDuplicate records a file skipped because its content matched an
// earlier input.
func (r *ImportReport) AddDuplicate(file, first string) {
	r.Entries = append(r.Entries, ImportReportEntry{
		File:        file,
		Status:      ImportStatusDuplicate,
		DuplicateOf: first,
	})
}

// Counts returns the number of successful and failed entries. Duplicates
// count as neither.
func (r *ImportReport) Counts() (ok, failed int) {
	for _, e := range r.Entries {
		switch e.Status {
		case ImportStatusOK:
			ok++
		case ImportStatusFailed:
			failed++
		}
	}
	return ok, failed
}

// Save writes the report as YAML, creating the parent directory.
func (r *ImportReport) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
