// Package overrides keeps known-good replacement prices in a local sqlite
// database. The recovery layer consults it before a reconstructed price
// record is allowed into a model.
package overrides

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

// ErrClosed indicates the store has been closed.
var ErrClosed = errors.New("override store is closed")

const schema = `
CREATE TABLE IF NOT EXISTS price_overrides (
	manufacturer TEXT NOT NULL,
	series       TEXT NOT NULL,
	article_nr   TEXT NOT NULL,
	price        REAL NOT NULL,
	currency     TEXT NOT NULL DEFAULT 'EUR',
	price_level  TEXT NOT NULL DEFAULT 'B',
	PRIMARY KEY (manufacturer, series, article_nr)
);`

// Store is a sqlite-backed override table. It implements ocd.OverrideSource.
type Store struct {
	db *sql.DB
}

var _ ocd.OverrideSource = (*Store)(nil)

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open override store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init override store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Lookup returns the known-good price for an article, if any.
func (s *Store) Lookup(manufacturer, series, articleNr string) (ocd.Override, bool) {
	if s.db == nil {
		return ocd.Override{}, false
	}
	var ov ocd.Override
	err := s.db.QueryRow(
		`SELECT price, currency, price_level FROM price_overrides
		 WHERE manufacturer = ? AND series = ? AND article_nr = ?`,
		manufacturer, series, articleNr,
	).Scan(&ov.Price, &ov.Currency, &ov.PriceLevel)
	if err != nil {
		return ocd.Override{}, false
	}
	return ov, true
}

// Put inserts or replaces one override.
func (s *Store) Put(manufacturer, series, articleNr string, ov ocd.Override) error {
	if s.db == nil {
		return ErrClosed
	}
	if ov.Currency == "" {
		ov.Currency = "EUR"
	}
	if ov.PriceLevel == "" {
		ov.PriceLevel = "B"
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO price_overrides
		 (manufacturer, series, article_nr, price, currency, price_level)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		manufacturer, series, articleNr, ov.Price, ov.Currency, ov.PriceLevel)
	return err
}

// Count returns the number of stored overrides.
func (s *Store) Count() (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM price_overrides`).Scan(&n)
	return n, err
}
