package provenance

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// SQLStore persists provenance chains in the provenance_records table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQL-backed provenance store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// AppendRecord inserts a new chain link. The unique (version_id, seq)
// constraint makes concurrent appends of the same link fail rather than fork
// the chain.
func (s *SQLStore) AppendRecord(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO provenance_records (version_id, seq, kind, payload, prev_digest, digest, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.VersionID, rec.Seq, rec.Kind, []byte(rec.Payload),
		rec.PrevDigest, rec.Digest, rec.Signature, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert provenance record: %w", err)
	}
	return nil
}

// ChainFor loads the chain ordered by seq.
func (s *SQLStore) ChainFor(ctx context.Context, versionID string) ([]*Record, error) {
	query := `
		SELECT id, version_id, seq, kind, payload, prev_digest, digest, signature, created_at
		FROM provenance_records
		WHERE version_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query provenance records: %w", err)
	}
	defer rows.Close()

	var chain []*Record
	for rows.Next() {
		rec := &Record{}
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.VersionID, &rec.Seq, &rec.Kind, &payload,
			&rec.PrevDigest, &rec.Digest, &rec.Signature, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan provenance record: %w", err)
		}
		rec.Payload = payload
		chain = append(chain, rec)
	}
	return chain, rows.Err()
}

// MemoryStore is an in-memory provenance store for tests and handler unit
// tests.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]*Record)}
}

// AppendRecord stores a copy of the link.
func (s *MemoryStore) AppendRecord(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.chains[rec.VersionID] {
		if existing.Seq == rec.Seq {
			return fmt.Errorf("provenance record %s/%d already exists", rec.VersionID, rec.Seq)
		}
	}
	cp := *rec
	s.chains[rec.VersionID] = append(s.chains[rec.VersionID], &cp)
	sort.Slice(s.chains[rec.VersionID], func(i, j int) bool {
		return s.chains[rec.VersionID][i].Seq < s.chains[rec.VersionID][j].Seq
	})
	return nil
}

// ChainFor returns copies of the chain links ordered by seq.
func (s *MemoryStore) ChainFor(ctx context.Context, versionID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[versionID]
	out := make([]*Record, 0, len(chain))
	for _, rec := range chain {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// Tamper overwrites a stored link's payload in place. Only for tests proving
// the chain is tamper-evident.
func (s *MemoryStore) Tamper(versionID string, seq int, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.chains[versionID] {
		if rec.Seq == seq {
			rec.Payload = payload
			return true
		}
	}
	return false
}
