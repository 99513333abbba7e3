// Package resources is the curated local-resource collaborator: a small
// SQLite directory of vetted facility records (hospitals, clinics,
// pharmacies). Records are only ever imported from the validated dataset;
// the pipeline never synthesizes them.
package resources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	haotel "github.com/Shahadat99x/healthcare-assistant-ai/internal/otel"
)

var tracer = haotel.Tracer("github.com/Shahadat99x/healthcare-assistant-ai/internal/resources")

// Facility types.
const (
	TypeEmergency = "emergency"
	TypeHospital  = "hospital"
	TypeClinic    = "clinic"
	TypePharmacy  = "pharmacy"
)

const schema = `
CREATE TABLE IF NOT EXISTS facilities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    sector INTEGER NOT NULL DEFAULT 0,
    phone TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_facilities_type ON facilities(type);
CREATE INDEX IF NOT EXISTS idx_facilities_sector ON facilities(sector);
`

// Facility is one vetted record from the curated directory.
type Facility struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	City    string `json:"city"`
	Sector  int    `json:"sector,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Store persists the curated facility directory in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the directory database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening resource db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing resource schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of facility records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facilities`).Scan(&n)
	return n, err
}

// ImportFile loads facility records from a validated JSON dataset, replacing
// existing records with the same id.
func (s *Store) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading facility dataset %s: %w", path, err)
	}
	var facilities []Facility
	if err := json.Unmarshal(data, &facilities); err != nil {
		return 0, fmt.Errorf("parsing facility dataset: %w", err)
	}
	return len(facilities), s.Import(ctx, facilities)
}

// Import upserts the given facility records in one transaction.
func (s *Store) Import(ctx context.Context, facilities []Facility) error {
	ctx, span := tracer.Start(ctx, "resources.import")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO facilities (id, name, type, address, city, sector, phone)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name=excluded.name, type=excluded.type, address=excluded.address,
            city=excluded.city, sector=excluded.sector, phone=excluded.phone`)
	if err != nil {
		return fmt.Errorf("preparing import stmt: %w", err)
	}
	defer stmt.Close()

	for _, f := range facilities {
		if f.ID == "" || f.Name == "" || f.Type == "" {
			return fmt.Errorf("facility record missing id, name, or type: %+v", f)
		}
		if _, err := stmt.ExecContext(ctx, f.ID, f.Name, f.Type, f.Address, f.City, f.Sector, f.Phone); err != nil {
			return fmt.Errorf("inserting facility %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// Query filters the directory.
type Query struct {
	Type   string
	Sector int
	Limit  int
}

// Find returns facilities matching the query, name-ordered for stable output.
func (s *Store) Find(ctx context.Context, q Query) ([]Facility, error) {
	ctx, span := tracer.Start(ctx, "resources.find")
	defer span.End()

	limit := q.Limit
	if limit <= 0 {
		limit = 3
	}

	var where []string
	var args []interface{}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, q.Type)
	}
	if q.Sector > 0 {
		where = append(where, "sector = ?")
		args = append(args, q.Sector)
	}
	query := `SELECT id, name, type, address, city, sector, phone FROM facilities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facilities: %w", err)
	}
	defer rows.Close()

	var out []Facility
	for rows.Next() {
		var f Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &f.Address, &f.City, &f.Sector, &f.Phone); err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Emergency returns the emergency-capable facility short-list attached to
// escalated responses. Falls back to hospitals when the dataset has no
// dedicated emergency records.
func (s *Store) Emergency(ctx context.Context, limit int) ([]Facility, error) {
	out, err := s.Find(ctx, Query{Type: TypeEmergency, Limit: limit})
	if err != nil || len(out) > 0 {
		return out, err
	}
	return s.Find(ctx, Query{Type: TypeHospital, Limit: limit})
}

var (
	sectorNumRe  = regexp.MustCompile(`\bsect(?:or)?\s*(\d)\b`)
	sectorWordRe = regexp.MustCompile(`\bsect(?:or)?\s+(one|two|three|four|five|six)\b`)
	sectorWords  = map[string]int{"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6}
)

// ExtractSector deterministically pulls a sector number (1-6) out of a
// message like "pharmacy in sector 6" or "sector six". Returns 0 when none
// is present.
func ExtractSector(text string) int {
	lower := strings.ToLower(text)
	if m := sectorNumRe.FindStringSubmatch(lower); m != nil {
		n := int(m[1][0] - '0')
		if n >= 1 && n <= 6 {
			return n
		}
	}
	if m := sectorWordRe.FindStringSubmatch(lower); m != nil {
		return sectorWords[m[1]]
	}
	return 0
}

// TypeFromMessage maps facility keywords in a logistics message to a
// directory type filter. Empty string means no filter.
func TypeFromMessage(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "pharmacy"):
		return TypePharmacy
	case strings.Contains(lower, "clinic"):
		return TypeClinic
	case strings.Contains(lower, "emergency"):
		return TypeEmergency
	case strings.Contains(lower, "hospital"):
		return TypeHospital
	}
	return ""
}
