package cache

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Entry is a cached model reply
type Entry struct {
	Text string
	// Sent is the transmitted image encoded as PNG
	Sent         []byte
	InputTokens  int64
	OutputTokens int64
}

// Store keeps model replies in SQLite keyed by request hash
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the cache database at path
func Open(path string) (*Store, error) {
	// WAL mode and a busy timeout let several runs share one cache file
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS responses (
		request_hash TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		sent BLOB,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create responses table: %w", err)
	}
	return nil
}

// Get returns the entry for key, or nil when there is none
func (s *Store) Get(key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry Entry
	err := s.db.QueryRow(
		"SELECT text, sent, input_tokens, output_tokens FROM responses WHERE request_hash = ?",
		key,
	).Scan(&entry.Text, &entry.Sent, &entry.InputTokens, &entry.OutputTokens)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	return &entry, nil
}

// Set stores entry under key, replacing any previous one
func (s *Store) Set(key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO responses (request_hash, text, sent, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(request_hash) DO UPDATE SET
			text = excluded.text,
			sent = excluded.sent,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			created_at = CURRENT_TIMESTAMP
	`, key, entry.Text, entry.Sent, entry.InputTokens, entry.OutputTokens)

	if err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// Len returns the number of cached replies
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
