package resources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "resources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store *Store) {
	t.Helper()
	err := store.Import(context.Background(), []Facility{
		{ID: "h1", Name: "City General Hospital", Type: TypeHospital, Address: "Main Road", City: "Islamabad", Sector: 1, Phone: "051-111"},
		{ID: "h2", Name: "Valley Hospital", Type: TypeHospital, Address: "Valley Road", City: "Islamabad", Sector: 3},
		{ID: "c1", Name: "Sector Three Clinic", Type: TypeClinic, Address: "Block C", City: "Islamabad", Sector: 3},
		{ID: "p1", Name: "Night Pharmacy", Type: TypePharmacy, Address: "Market", City: "Islamabad", Sector: 6, Phone: "051-222"},
	})
	require.NoError(t, err)
}

func TestImportAndFind(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	found, err := store.Find(context.Background(), Query{Type: TypeHospital, Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 2)
	// Name-ordered
	assert.Equal(t, "City General Hospital", found[0].Name)

	found, err = store.Find(context.Background(), Query{Sector: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = store.Find(context.Background(), Query{Type: TypeClinic, Sector: 3})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c1", found[0].ID)

	// Default limit
	found, err = store.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestImportUpserts(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	err := store.Import(context.Background(), []Facility{
		{ID: "h1", Name: "City General Hospital (renamed)", Type: TypeHospital, City: "Islamabad"},
	})
	require.NoError(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n, "upsert must not duplicate")

	found, err := store.Find(context.Background(), Query{Type: TypeHospital, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "City General Hospital (renamed)", found[0].Name)
}

func TestImportRejectsIncompleteRecords(t *testing.T) {
	store := newTestStore(t)
	err := store.Import(context.Background(), []Facility{{ID: "x"}})
	assert.Error(t, err)
}

func TestImportFile(t *testing.T) {
	store := newTestStore(t)

	data, err := json.Marshal([]Facility{
		{ID: "f1", Name: "File Hospital", Type: TypeHospital, City: "Islamabad"},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "facilities.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	n, err := store.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.ImportFile(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestEmergencyFallsBackToHospitals(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	found, err := store.Emergency(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, TypeHospital, found[0].Type)

	// A dedicated emergency record takes precedence
	require.NoError(t, store.Import(context.Background(), []Facility{
		{ID: "e1", Name: "Emergency Response Centre", Type: TypeEmergency, City: "Islamabad"},
	}))
	found, err = store.Emergency(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "e1", found[0].ID)
}

func TestExtractSector(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"pharmacy in sector 6", 6},
		{"is there a clinic in Sector 3?", 3},
		{"sect 2 hospital", 2},
		{"sector six please", 6},
		{"sector one", 1},
		{"sector 9", 0}, // out of range
		{"no sector mentioned", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractSector(tt.text), tt.text)
	}
}

func TestTypeFromMessage(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"nearest pharmacy please", TypePharmacy},
		{"any clinic around", TypeClinic},
		{"emergency room location", TypeEmergency},
		{"which hospital is closest", TypeHospital},
		{"pharmacy or hospital", TypePharmacy}, // first keyword wins
		{"where can I get help", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeFromMessage(tt.text), tt.text)
	}
}
