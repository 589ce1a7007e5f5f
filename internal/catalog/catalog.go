// Package catalog indexes recorded sessions and their block files in a
// SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Session is one streaming run.
type Session struct {
	ID      string
	Dir     string
	Rate    string
	Fake    bool
	Started time.Time
}

// BlockRecord is one block file written for a session.
type BlockRecord struct {
	SessionID string
	Seq       uint64
	Channel   string
	Path      string
	Samples   int
	Overflow  bool
	Written   time.Time
}

// SessionSummary is a Session with totals over its blocks.
type SessionSummary struct {
	Session
	Blocks  int
	Samples int64
}

// Catalog is a handle on the catalog database. It is safe for concurrent use.
type Catalog struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// one writer; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return c, nil
}

func (c *Catalog) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		dir TEXT NOT NULL,
		rate TEXT NOT NULL,
		fake INTEGER NOT NULL DEFAULT 0,
		started INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blocks (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		channel TEXT NOT NULL,
		path TEXT NOT NULL,
		samples INTEGER NOT NULL,
		overflow INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq, channel),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_blocks_session ON blocks(session_id);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// AddSession records a session. Re-adding an ID replaces it.
func (c *Catalog) AddSession(ctx context.Context, s Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, dir, rate, fake, started)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Dir, s.Rate, boolInt(s.Fake), s.Started.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to add session: %w", err)
	}
	return nil
}

// AddBlock records a written block file.
func (c *Catalog) AddBlock(ctx context.Context, b BlockRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO blocks (session_id, seq, channel, path, samples, overflow, written)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.SessionID, int64(b.Seq), b.Channel, b.Path, b.Samples, boolInt(b.Overflow), b.Written.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to add block: %w", err)
	}
	return nil
}

// Sessions lists all sessions, newest first, with block totals.
func (c *Catalog) Sessions(ctx context.Context) ([]SessionSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, `
		SELECT s.id, s.dir, s.rate, s.fake, s.started,
		       COUNT(b.seq), COALESCE(SUM(b.samples), 0)
		FROM sessions s
		LEFT JOIN blocks b ON b.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			s       SessionSummary
			fake    int
			started int64
		)
		if err := rows.Scan(&s.ID, &s.Dir, &s.Rate, &fake, &started, &s.Blocks, &s.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.Fake = fake != 0
		s.Started = time.Unix(0, started)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Blocks lists the blocks of a session in sequence order.
func (c *Catalog) Blocks(ctx context.Context, sessionID string) ([]BlockRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, `
		SELECT session_id, seq, channel, path, samples, overflow, written
		FROM blocks
		WHERE session_id = ?
		ORDER BY seq, channel`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var out []BlockRecord
	for rows.Next() {
		var (
			b        BlockRecord
			seq      int64
			overflow int
			written  int64
		)
		if err := rows.Scan(&b.SessionID, &seq, &b.Channel, &b.Path, &b.Samples, &overflow, &written); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		b.Seq = uint64(seq)
		b.Overflow = overflow != 0
		b.Written = time.Unix(0, written)
		out = append(out, b)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
