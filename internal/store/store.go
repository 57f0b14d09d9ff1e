// Package store keeps the archive of mirrored posts: which source
// items were carried over, and the target-platform records they became.
// It backs the duplicate guard and the status command; the cursor file
// remains the authoritative fetch position.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const DefaultArchiveFile = "shushu.db"

type Store struct {
	db *sql.DB
}

// Mirrored is one archived source-to-target mapping.
type Mirrored struct {
	ID            int64
	Source        string
	ItemID        string
	BskyURI       string
	BskyCID       string
	TextHash      string
	ItemCreatedAt time.Time
	MirroredAt    time.Time
}

// MirroredInput is the data recorded after a successful post.
type MirroredInput struct {
	Source        string
	ItemID        string
	BskyURI       string
	BskyCID       string
	Text          string
	ItemCreatedAt time.Time
	MirroredAt    time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record archives a successfully mirrored item. Re-recording the same
// (source, item_id) updates the row rather than duplicating it.
func (s *Store) Record(ctx context.Context, in MirroredInput) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(in.Source) == "" {
		return errors.New("source is required")
	}
	if strings.TrimSpace(in.ItemID) == "" {
		return errors.New("item_id is required")
	}
	if strings.TrimSpace(in.BskyURI) == "" {
		return errors.New("bsky_uri is required")
	}
	if in.MirroredAt.IsZero() {
		return errors.New("mirrored_at is required")
	}

	var createdAt sql.NullString
	if !in.ItemCreatedAt.IsZero() {
		createdAt = sql.NullString{String: formatTime(in.ItemCreatedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mirrored_posts (
			source, item_id, bsky_uri, bsky_cid, text_hash, item_created_at, mirrored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, item_id) DO UPDATE SET
			bsky_uri = excluded.bsky_uri,
			bsky_cid = excluded.bsky_cid,
			text_hash = excluded.text_hash,
			item_created_at = excluded.item_created_at,
			mirrored_at = excluded.mirrored_at
	`,
		in.Source,
		in.ItemID,
		in.BskyURI,
		in.BskyCID,
		textHash(in.Text),
		createdAt,
		formatTime(in.MirroredAt),
	)
	if err != nil {
		return fmt.Errorf("record mirrored post: %w", err)
	}
	return nil
}

// Seen reports whether the item was already mirrored. A nil store
// (archive disabled) never claims to have seen anything.
func (s *Store) Seen(ctx context.Context, source, itemID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM mirrored_posts WHERE source = ? AND item_id = ?",
		source, itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return n > 0, nil
}

// Recent returns the most recently mirrored posts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Mirrored, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, item_id, bsky_uri, bsky_cid, text_hash, item_created_at, mirrored_at
		FROM mirrored_posts
		ORDER BY mirrored_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []Mirrored
	for rows.Next() {
		var (
			m         Mirrored
			createdAt sql.NullString
			mirrored  string
		)
		if err := rows.Scan(&m.ID, &m.Source, &m.ItemID, &m.BskyURI, &m.BskyCID, &m.TextHash, &createdAt, &mirrored); err != nil {
			return nil, fmt.Errorf("scan mirrored post: %w", err)
		}
		if createdAt.Valid {
			m.ItemCreatedAt, err = parseTime(createdAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse item_created_at: %w", err)
			}
		}
		m.MirroredAt, err = parseTime(mirrored)
		if err != nil {
			return nil, fmt.Errorf("parse mirrored_at: %w", err)
		}
		posts = append(posts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent: %w", err)
	}

	return posts, nil
}

// Count returns the total number of archived posts.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mirrored_posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("count mirrored posts: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
