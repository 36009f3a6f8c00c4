package share

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a short code is unknown.
var ErrNotFound = errors.New("short link not found")

const (
	base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	codeLength     = 8
	maxTargetSize  = 4096
	maxAttempts    = 64
)

const schema = `
CREATE TABLE IF NOT EXISTS short_links (
  id         INTEGER PRIMARY KEY,
  code       TEXT NOT NULL UNIQUE,
  target     TEXT NOT NULL UNIQUE,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_short_links_target
  ON short_links (target);
`

// Store keeps short links in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open the store at the given path and create the schema if necessary. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open short link database %s", path)
	}
	if path == ":memory:" {
		// every connection would get its own in-memory database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "cannot enable WAL mode")
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot create short link schema")
	}
	log.Printf("short link database opened: %s", path)
	return &Store{db: db}, nil
}

// Close the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Shorten returns the short code for the given target. An existing code is reused.
func (s *Store) Shorten(ctx context.Context, target string, now time.Time) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("empty target")
	}
	if len(target) > maxTargetSize {
		return "", errors.New("target too long")
	}

	existing, err := s.lookupByTarget(ctx, target)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}
		result, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO short_links (code,target,created_at) VALUES (?,?,?)",
			code, target, now.Unix())
		if err != nil {
			return "", errors.Wrap(err, "cannot store short link")
		}
		if n, _ := result.RowsAffected(); n == 1 {
			return code, nil
		}
		// either the code is taken or someone else stored the target concurrently
		if existing, err := s.lookupByTarget(ctx, target); err != nil {
			return "", err
		} else if existing != "" {
			return existing, nil
		}
	}
	return "", errors.Errorf("short code generation exhausted %d attempts", maxAttempts)
}

// Resolve returns the target of the given short code or ErrNotFound.
func (s *Store) Resolve(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if !isBase62(code) {
		return "", ErrNotFound
	}
	var target string
	err := s.db.QueryRowContext(ctx, "SELECT target FROM short_links WHERE code = ? LIMIT 1", code).Scan(&target)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "cannot resolve short link")
	}
	return target, nil
}

func (s *Store) lookupByTarget(ctx context.Context, target string) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx, "SELECT code FROM short_links WHERE target = ? LIMIT 1", target).Scan(&code)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "cannot look up short link")
	}
	return code, nil
}

func randomCode(length int) (string, error) {
	result := make([]byte, length)
	var b [1]byte
	for i := range result {
		for {
			if _, err := rand.Read(b[:]); err != nil {
				return "", errors.Wrap(err, "cannot read random bytes")
			}
			// 248 is the largest multiple of 62 below 256
			if b[0] < 62*4 {
				result[i] = base62Alphabet[b[0]%62]
				break
			}
		}
	}
	return string(result), nil
}

func isBase62(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(base62Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
