package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/ellipsis-codec/testutil"
	"gopkg.in/yaml.v3"
)

func TestImportReport_Counts(t *testing.T) {
	report := NewImportReport()
	story := &Story{
		ID:             "s1",
		Name:           "Tavern",
		Characters:     []Character{{ID: "u"}, {ID: "c"}},
		Scenarios:      []Scenario{{ID: "sc"}},
		DynamicEntries: []DynamicEntry{{ID: "d1"}, {ID: "d2"}},
	}
	report.AddSuccess("tavern.png", "card", "out/tavern.json", story, true)
	report.AddFailure("broken.zip", errors.New("archive is missing a scenario document"))
	report.AddDuplicate("tavern-copy.png", "tavern.png")

	ok, failed := report.Counts()
	if ok != 1 || failed != 1 {
		t.Errorf("Counts() = (%d, %d), want (1, 1)", ok, failed)
	}

	got := report.Entries[0]
	if got.Characters != 2 || got.Scenarios != 1 || got.LoreEntries != 2 || !got.HasImage {
		t.Errorf("AddSuccess() entry = %+v", got)
	}
	if report.Entries[1].Status != ImportStatusFailed {
		t.Errorf("AddFailure() status = %q, want %q", report.Entries[1].Status, ImportStatusFailed)
	}
	if dup := report.Entries[2]; dup.Status != ImportStatusDuplicate || dup.DuplicateOf != "tavern.png" {
		t.Errorf("AddDuplicate() entry = %+v", dup)
	}
}

func TestImportReport_SaveLoad(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "reports", "import.yaml")

	report := NewImportReport()
	report.AddSuccess("a.json", "native", "", &Story{ID: "id-1", Name: "A"}, false)
	report.AddFailure("b.png", errors.New("no character data found"))

	if err := report.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(raw), "status: failed") {
		t.Errorf("report YAML missing failure entry:\n%s", raw)
	}

	var loaded ImportReport
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		t.Fatalf("report YAML does not decode: %v", err)
	}
	if len(loaded.Entries) != 2 {
		t.Fatalf("decoded entries = %d, want 2", len(loaded.Entries))
	}
	if loaded.Entries[1].Error != "no character data found" {
		t.Errorf("loaded error = %q", loaded.Entries[1].Error)
	}
	if !loaded.GeneratedAt.Equal(report.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", loaded.GeneratedAt, report.GeneratedAt)
	}
}
