package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/npzconv/core/cas"
	"github.com/FocuswithJustin/npzconv/core/convert"
	"github.com/FocuswithJustin/npzconv/core/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS arrays (
	name     TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	dtype    TEXT NOT NULL,
	shape    TEXT NOT NULL,
	size     INTEGER NOT NULL,
	value    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS conversions (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	output     TEXT NOT NULL,
	digest     TEXT NOT NULL,
	entries    INTEGER NOT NULL,
	created_at TEXT NOT NULL
);`

// Meta describes the conversion being exported.
type Meta struct {
	RunID     string // generated when empty
	Source    string
	Output    string
	Digest    string
	AllowNaN  bool
	CreatedAt time.Time // now when zero
}

// ArrayRow is one row of the arrays table.
type ArrayRow struct {
	Name     string
	Position int
	DType    string
	Shape    []int
	Size     int
	Value    string
}

// ConversionRow is one row of the conversions table.
type ConversionRow struct {
	ID        string
	Source    string
	Output    string
	Digest    string
	Entries   int
	CreatedAt time.Time
}

// Export writes doc to the database at dbPath in one transaction. The arrays
// table is replaced with doc's entries and a row is appended to conversions.
// It returns the run ID recorded. A non-empty meta.Digest must be a
// hex-encoded 256-bit digest.
func Export(dbPath string, doc *convert.Document, meta Meta) (string, error) {
	if meta.Digest != "" && !cas.IsValidHash(meta.Digest) {
		v := errors.NewValidation("digest", "not a hex-encoded 256-bit digest")
		v.Value = meta.Digest
		return "", v
	}
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	db, err := Open(dbPath)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", dbPath)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return "", errors.Wrap(err, "create schema")
	}

	tx, err := db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "begin")
	}
	if err := writeDocument(tx, doc, meta); err != nil {
		tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit")
	}
	return meta.RunID, nil
}

func writeDocument(tx *sql.Tx, doc *convert.Document, meta Meta) error {
	if _, err := tx.Exec(`DELETE FROM arrays`); err != nil {
		return errors.Wrap(err, "clear arrays")
	}

	stmt, err := tx.Prepare(`INSERT INTO arrays (name, position, dtype, shape, size, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for i, e := range doc.Entries() {
		value, err := convert.EncodeValue(e.Name, e.Value, convert.EncodeOptions{AllowNaN: meta.AllowNaN})
		if err != nil {
			return err
		}
		shape, err := json.Marshal(append([]int{}, e.Shape...))
		if err != nil {
			return errors.Wrapf(err, "encode shape of %s", e.Name)
		}
		if _, err := stmt.Exec(e.Name, i, e.DType.String(), string(shape), elementCount(e.Shape), string(value)); err != nil {
			return errors.Wrapf(err, "insert %s", e.Name)
		}
	}

	_, err = tx.Exec(`INSERT INTO conversions (id, source, output, digest, entries, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		meta.RunID, meta.Source, meta.Output, meta.Digest, doc.Len(), meta.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return errors.Wrap(err, "record conversion")
	}
	return nil
}

func elementCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Arrays returns the arrays table in position order.
func Arrays(dbPath string) ([]ArrayRow, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name, position, dtype, shape, size, value FROM arrays ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "query arrays")
	}
	defer rows.Close()

	var out []ArrayRow
	for rows.Next() {
		var r ArrayRow
		var shape string
		if err := rows.Scan(&r.Name, &r.Position, &r.DType, &shape, &r.Size, &r.Value); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(shape), &r.Shape); err != nil {
			return nil, errors.Wrapf(err, "decode shape of %s", r.Name)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Conversions returns the conversions table, oldest first.
func Conversions(dbPath string) ([]ConversionRow, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, source, output, digest, entries, created_at FROM conversions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, errors.Wrap(err, "query conversions")
	}
	defer rows.Close()

	var out []ConversionRow
	for rows.Next() {
		var r ConversionRow
		var created string
		if err := rows.Scan(&r.ID, &r.Source, &r.Output, &r.Digest, &r.Entries, &created); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, errors.Wrap(err, "decode created_at")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
