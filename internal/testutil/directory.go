package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
)

// NewTestDirectory creates a facility directory in a temp dir, seeds it with
// a few vetted records, and registers t.Cleanup to close it.
func NewTestDirectory(t *testing.T) *resources.Store {
	t.Helper()
	store, err := resources.NewStore(filepath.Join(t.TempDir(), "resources.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	err = store.Import(context.Background(), []resources.Facility{
		{ID: "h-ums", Name: "City General Hospital", Type: "hospital", Address: "Hospital Road", City: "Islamabad", Sector: 1, Phone: "051-1234567"},
		{ID: "h-pims", Name: "National Medical Centre", Type: "hospital", Address: "G-8/3", City: "Islamabad", Sector: 8, Phone: "051-9261170"},
		{ID: "c-g9", Name: "Sector Clinic G-9", Type: "clinic", Address: "G-9 Markaz", City: "Islamabad", Sector: 9},
		{ID: "p-f7", Name: "F-7 Pharmacy", Type: "pharmacy", Address: "F-7 Markaz", City: "Islamabad", Sector: 7, Phone: "051-2650000"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}
