package docstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mirrormap/mirrormap/pkg/wire"

	_ "modernc.org/sqlite"
)

const persistSchema = `
CREATE TABLE IF NOT EXISTS documents (
	name     TEXT PRIMARY KEY,
	rev      INTEGER NOT NULL,
	objects  BLOB NOT NULL,
	saved_at TEXT NOT NULL
);`

// Persist stores document snapshots in a SQLite file. One row per
// document, whole state as a JSON blob — documents are small and are
// always loaded and saved whole.
type Persist struct {
	db *sql.DB
}

// OpenPersist opens (creating if needed) the SQLite database at path.
func OpenPersist(path string) (*Persist, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// modernc's driver allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(persistSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Persist{db: db}, nil
}

// Save upserts one document snapshot.
func (p *Persist) Save(snap Snapshot) error {
	blob, err := json.Marshal(snap.Objects)
	if err != nil {
		return fmt.Errorf("encode %q: %w", snap.Doc, err)
	}
	_, err = p.db.Exec(`
		INSERT INTO documents (name, rev, objects, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			rev = excluded.rev,
			objects = excluded.objects,
			saved_at = excluded.saved_at`,
		snap.Doc, snap.Rev, blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save %q: %w", snap.Doc, err)
	}
	return nil
}

// Load reads one document snapshot. ok is false when no row exists.
func (p *Persist) Load(name string) (Snapshot, bool, error) {
	var (
		rev  uint64
		blob []byte
	)
	err := p.db.QueryRow(
		`SELECT rev, objects FROM documents WHERE name = ?`, name,
	).Scan(&rev, &blob)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load %q: %w", name, err)
	}

	var objects []wire.ObjectState
	if err := json.Unmarshal(blob, &objects); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode %q: %w", name, err)
	}
	return Snapshot{Doc: name, Rev: rev, Objects: objects}, true, nil
}

// LoadAll reads every persisted document, sorted by name.
func (p *Persist) LoadAll() ([]Snapshot, error) {
	rows, err := p.db.Query(`SELECT name, rev, objects FROM documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load all: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			name string
			rev  uint64
			blob []byte
		)
		if err := rows.Scan(&name, &rev, &blob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var objects []wire.ObjectState
		if err := json.Unmarshal(blob, &objects); err != nil {
			return nil, fmt.Errorf("decode %q: %w", name, err)
		}
		snaps = append(snaps, Snapshot{Doc: name, Rev: rev, Objects: objects})
	}
	return snaps, rows.Err()
}

// Close closes the underlying database.
func (p *Persist) Close() error { return p.db.Close() }
