package lutdb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/energyshield/internal/lut"
)

// ErrNotFound is returned when no stored table matches a lookup.
var ErrNotFound = errors.New("lut table not found")

// TableRecord summarises one stored table.
type TableRecord struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	SourcePath string     `json:"source_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	BandCount  int        `json:"band_count"`
	MinOffset  float64    `json:"min_offset"`
	MaxOffset  float64    `json:"max_offset"`
	Params     lut.Params `json:"params"`
}

// SaveTable validates bands, serialises them and stores the blob under a
// new ID. Bands that would not form a valid table are rejected so that
// every stored blob loads.
func (db *DB) SaveTable(ctx context.Context, name, sourcePath string, bands []lut.Band) (*TableRecord, error) {
	tbl, err := lut.NewTable(bands, nil)
	if err != nil {
		return nil, fmt.Errorf("refusing to store invalid lut: %w", err)
	}
	blob, err := lut.Marshal(bands)
	if err != nil {
		return nil, err
	}

	offsets := tbl.Offsets()
	rec := &TableRecord{
		ID:         uuid.New(),
		Name:       name,
		SourcePath: sourcePath,
		CreatedAt:  db.clock.Now().UTC(),
		BandCount:  tbl.Len(),
		MinOffset:  offsets[0],
		MaxOffset:  offsets[len(offsets)-1],
		Params:     tbl.Params(),
	}
	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO lut_tables (
			table_id, name, source_path, created_unix_nanos, band_count,
			min_offset, max_offset, params_json, lut_blob
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Name, rec.SourcePath, rec.CreatedAt.UnixNano(), rec.BandCount,
		rec.MinOffset, rec.MaxOffset, string(paramsJSON), blob,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert lut table: %w", err)
	}
	return rec, nil
}

// LoadTable decodes the stored table id, applying the optional band range.
func (db *DB) LoadTable(ctx context.Context, id uuid.UUID, rng *lut.Range) (*lut.Table, error) {
	var blob []byte
	err := db.QueryRowContext(ctx,
		`SELECT lut_blob FROM lut_tables WHERE table_id = ?`, id.String(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lut table %s: %w", id, err)
	}

	tbl, err := lut.Load(bytes.NewReader(blob), rng)
	if err != nil {
		return nil, fmt.Errorf("failed to load lut table %s: %w", id, err)
	}
	return tbl, nil
}

// LatestTable loads the most recently saved table. An empty name matches
// any table.
func (db *DB) LatestTable(ctx context.Context, name string, rng *lut.Range) (*lut.Table, *TableRecord, error) {
	q := `SELECT table_id FROM lut_tables`
	var args []interface{}
	if name != "" {
		q += ` WHERE name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY created_unix_nanos DESC, rowid DESC LIMIT 1`

	var idStr string
	err := db.QueryRowContext(ctx, q, args...).Scan(&idStr)
	if errors.Is(err, sql.ErrNoRows) {
		if name != "" {
			return nil, nil, fmt.Errorf("%w: no table named %q", ErrNotFound, name)
		}
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find latest lut table: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, nil, fmt.Errorf("stored lut table has invalid id %q: %w", idStr, err)
	}
	rec, err := db.GetTableRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := db.LoadTable(ctx, id, rng)
	if err != nil {
		return nil, nil, err
	}
	return tbl, rec, nil
}

const recordColumns = `table_id, name, source_path, created_unix_nanos, band_count,
	min_offset, max_offset, params_json`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*TableRecord, error) {
	var (
		rec        TableRecord
		idStr      string
		created    int64
		paramsJSON string
	)
	if err := row.Scan(&idStr, &rec.Name, &rec.SourcePath, &created, &rec.BandCount,
		&rec.MinOffset, &rec.MaxOffset, &paramsJSON); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("stored lut table has invalid id %q: %w", idStr, err)
	}
	rec.ID = id
	rec.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
		return nil, fmt.Errorf("failed to parse params for %s: %w", idStr, err)
	}
	return &rec, nil
}

// GetTableRecord returns the summary of table id without decoding its blob.
func (db *DB) GetTableRecord(ctx context.Context, id uuid.UUID) (*TableRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM lut_tables WHERE table_id = ?`, id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTables returns summaries of all stored tables, newest first.
func (db *DB) ListTables(ctx context.Context) ([]TableRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM lut_tables ORDER BY created_unix_nanos DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lut tables: %w", err)
	}
	defer rows.Close()

	var out []TableRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTable removes table id.
func (db *DB) DeleteTable(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM lut_tables WHERE table_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete lut table %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
