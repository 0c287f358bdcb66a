// Package store persists scanned controllers and their tag trees in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"tagscan/logging"
	"tagscan/resolver"
	"tagscan/session"
	"tagscan/tagerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS controllers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    address TEXT NOT NULL,
    slot INTEGER NOT NULL DEFAULT 0,
    name TEXT,
    revision TEXT,
    last_scan TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(address, slot)
);
CREATE TABLE IF NOT EXISTS tag_sets (
    controller_id INTEGER PRIMARY KEY,
    tags_json TEXT NOT NULL,
    FOREIGN KEY(controller_id) REFERENCES controllers(id) ON DELETE CASCADE
);
`

// Controller is one stored controller row.
type Controller struct {
	ID       int64     `json:"id"`
	Address  string    `json:"address"`
	Slot     byte      `json:"slot"`
	Name     string    `json:"name"`
	Revision string    `json:"revision"`
	LastScan time.Time `json:"last_scan"`
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, &tagerr.PersistenceError{Op: "open", Err: fmt.Errorf("empty database path")}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &tagerr.PersistenceError{Op: "open", Err: err}
	}

	// Single writer; SQLite serializes anyway and this avoids
	// SQLITE_BUSY under concurrent CLI/web access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, &tagerr.PersistenceError{Op: "open", Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &tagerr.PersistenceError{Op: "open", Err: err}
	}

	logging.DebugLog("store", "opened database %s", path)

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return &tagerr.PersistenceError{Op: "close", Err: err}
	}
	return nil
}

// SaveScan stores one scan result in a single transaction: the
// controller row is upserted by (address, slot) and the tag set is
// replaced wholesale. A failure leaves the previous scan intact.
func (s *Store) SaveScan(ctx context.Context, info *session.ControllerInfo, roots []*resolver.TagNode) (int64, error) {
	if s == nil || s.db == nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: fmt.Errorf("store not open")}
	}
	if info == nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: fmt.Errorf("nil controller info")}
	}

	tagsJSON, err := json.Marshal(roots)
	if err != nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO controllers (address, slot, name, revision, last_scan)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(address, slot) DO UPDATE SET
			name = excluded.name,
			revision = excluded.revision,
			last_scan = CURRENT_TIMESTAMP`,
		info.Address, info.Slot, info.ProductName, info.Revision)
	if err != nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: err}
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM controllers WHERE address = ? AND slot = ?",
		info.Address, info.Slot).Scan(&id)
	if err != nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_sets (controller_id, tags_json) VALUES (?, ?)
		ON CONFLICT(controller_id) DO UPDATE SET tags_json = excluded.tags_json`,
		id, string(tagsJSON))
	if err != nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &tagerr.PersistenceError{Op: "save scan", Err: err}
	}

	logging.DebugLog("store", "saved scan for %s slot %d (controller %d, %d bytes of tags)",
		info.Address, info.Slot, id, len(tagsJSON))

	return id, nil
}

// Controllers lists all stored controllers, most recently scanned
// first.
func (s *Store) Controllers(ctx context.Context) ([]Controller, error) {
	if s == nil || s.db == nil {
		return nil, &tagerr.PersistenceError{Op: "list controllers", Err: fmt.Errorf("store not open")}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, address, slot, COALESCE(name, ''), COALESCE(revision, ''), last_scan
		FROM controllers ORDER BY last_scan DESC`)
	if err != nil {
		return nil, &tagerr.PersistenceError{Op: "list controllers", Err: err}
	}
	defer rows.Close()

	var out []Controller
	for rows.Next() {
		var c Controller
		if err := rows.Scan(&c.ID, &c.Address, &c.Slot, &c.Name, &c.Revision, &c.LastScan); err != nil {
			return nil, &tagerr.PersistenceError{Op: "list controllers", Err: err}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &tagerr.PersistenceError{Op: "list controllers", Err: err}
	}

	return out, nil
}

// FindController looks a controller up by (address, slot).
func (s *Store) FindController(ctx context.Context, address string, slot byte) (*Controller, error) {
	if s == nil || s.db == nil {
		return nil, &tagerr.PersistenceError{Op: "find controller", Err: fmt.Errorf("store not open")}
	}

	var c Controller
	err := s.db.QueryRowContext(ctx, `
		SELECT id, address, slot, COALESCE(name, ''), COALESCE(revision, ''), last_scan
		FROM controllers WHERE address = ? AND slot = ?`,
		address, slot).Scan(&c.ID, &c.Address, &c.Slot, &c.Name, &c.Revision, &c.LastScan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tagerr.NotFoundError{Path: fmt.Sprintf("%s slot %d", address, slot)}
	}
	if err != nil {
		return nil, &tagerr.PersistenceError{Op: "find controller", Err: err}
	}

	return &c, nil
}

// TagSet returns the stored tag tree for a controller.
func (s *Store) TagSet(ctx context.Context, controllerID int64) ([]*resolver.TagNode, error) {
	if s == nil || s.db == nil {
		return nil, &tagerr.PersistenceError{Op: "load tag set", Err: fmt.Errorf("store not open")}
	}

	var tagsJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT tags_json FROM tag_sets WHERE controller_id = ?",
		controllerID).Scan(&tagsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tagerr.NotFoundError{Path: fmt.Sprintf("controller %d", controllerID)}
	}
	if err != nil {
		return nil, &tagerr.PersistenceError{Op: "load tag set", Err: err}
	}

	var roots []*resolver.TagNode
	if err := json.Unmarshal([]byte(tagsJSON), &roots); err != nil {
		return nil, &tagerr.PersistenceError{Op: "load tag set", Err: err}
	}

	return roots, nil
}

// DeleteController removes a controller; the tag set cascades.
func (s *Store) DeleteController(ctx context.Context, controllerID int64) error {
	if s == nil || s.db == nil {
		return &tagerr.PersistenceError{Op: "delete controller", Err: fmt.Errorf("store not open")}
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM controllers WHERE id = ?", controllerID)
	if err != nil {
		return &tagerr.PersistenceError{Op: "delete controller", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &tagerr.NotFoundError{Path: fmt.Sprintf("controller %d", controllerID)}
	}

	return nil
}
