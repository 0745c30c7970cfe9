package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/idgrep/internal/rgjson"
)

func TestToRelative(t *testing.T) {
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{"file under root", "/srv/data/crm/export.csv", "/srv/data", "crm/export.csv"},
		{"root level file", "/srv/data/contacts.txt", "/srv/data", "contacts.txt"},
		{"root itself", "/srv/data", "/srv/data", "."},
		{"trailing slash on root", "/srv/data/a.txt", "/srv/data/", "a.txt"},
		{"already relative", "crm/export.csv", "/srv/data", "crm/export.csv"},
		{"outside root", "/tmp/other.txt", "/srv/data", "/tmp/other.txt"},
		{"sibling with shared prefix", "/srv/database/x.txt", "/srv/data", "/srv/database/x.txt"},
		{"dot-dot prefixed name stays inside", "/srv/data/..notes", "/srv/data", "..notes"},
		{"empty root", "/srv/data/a.txt", "", "/srv/data/a.txt"},
		{"empty path", "", "/srv/data", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToRelative(tt.absPath, tt.rootDir))
		})
	}
}

func TestToRelativeRecord(t *testing.T) {
	rec := rgjson.Record{LineNumber: 2, Content: "555-123-4567", IsMatch: true, FilePath: "/srv/data/a.csv"}

	out := ToRelativeRecord(rec, "/srv/data")
	assert.Equal(t, "a.csv", out.FilePath)
	assert.Equal(t, rec.Content, out.Content)
	assert.True(t, out.IsMatch)
	assert.Equal(t, 2, out.LineNumber)
	assert.Equal(t, "/srv/data/a.csv", rec.FilePath, "input is passed by value")

	other := ToRelativeRecord(rgjson.Record{FilePath: "/elsewhere/b.csv"}, "/srv/data")
	assert.Equal(t, "/elsewhere/b.csv", other.FilePath)
}
