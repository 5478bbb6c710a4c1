package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/reasoning"
)

var (
	// ErrNotFound is returned when no entry or report matches
	ErrNotFound = errors.New("audit entry not found")

	// ErrDigestMismatch is returned when stored bytes no longer match their digest
	ErrDigestMismatch = errors.New("audit digest mismatch")
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	report_id      TEXT PRIMARY KEY,
	category       TEXT NOT NULL,
	severity       TEXT,
	message_digest TEXT NOT NULL,
	passages       INTEGER NOT NULL,
	processed_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chains (
	entry_id   TEXT PRIMARY KEY,
	report_id  TEXT NOT NULL,
	position   INTEGER NOT NULL,
	title      TEXT NOT NULL,
	canonical  TEXT NOT NULL,
	digest     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (report_id, position),
	FOREIGN KEY (report_id) REFERENCES reports(report_id)
);
`

// timeLayout is fixed-width so stored timestamps sort chronologically as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one stored reasoning chain
type Entry struct {
	ID        string
	ReportID  string
	Position  int
	Title     string
	Digest    string
	CreatedAt time.Time
	Record    reasoning.Record
}

// ReportSummary is the indexed metadata of a stored report. The message
// itself is never stored, only its digest.
type ReportSummary struct {
	ReportID      string
	Category      model.Category
	Severity      string
	MessageDigest string
	Passages      int
	ProcessedAt   time.Time
}

// Store persists canonical chain bytes in SQLite
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and runs migrations
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport stores the report metadata and every chain in decision order
// in one transaction. It returns the stored entries.
func (s *Store) SaveReport(ctx context.Context, report *model.Report) ([]Entry, error) {
	if report == nil || report.ID == "" {
		return nil, fmt.Errorf("save report: missing report id")
	}

	processedAt := report.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	var severity any
	if report.Risk != nil {
		severity = report.Risk.Severity.String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (report_id, category, severity, message_digest, passages, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID,
		string(report.Classification.Category),
		severity,
		digestString(report.Message),
		len(report.Retrieval.Passages),
		processedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	var entries []Entry
	for i, record := range report.Chains() {
		entry, err := insertChain(ctx, tx, report.ID, i, record, processedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return entries, nil
}

// Save stores a report, discarding the entry list
func (s *Store) Save(ctx context.Context, report *model.Report) error {
	_, err := s.SaveReport(ctx, report)
	return err
}

func insertChain(ctx context.Context, tx *sql.Tx, reportID string, position int, record reasoning.Record, at time.Time) (Entry, error) {
	canonical, err := record.Serialize()
	if err != nil {
		return Entry{}, fmt.Errorf("serialize chain %d: %w", position, err)
	}
	digest, err := record.Digest()
	if err != nil {
		return Entry{}, fmt.Errorf("digest chain %d: %w", position, err)
	}

	entry := Entry{
		ID:        uuid.New().String(),
		ReportID:  reportID,
		Position:  position,
		Title:     record.Title(),
		Digest:    digest,
		CreatedAt: at.UTC(),
		Record:    record,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chains (entry_id, report_id, position, title, canonical, digest, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, reportID, position, entry.Title, string(canonical), digest,
		entry.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert chain %d: %w", position, err)
	}
	return entry, nil
}

// Get loads one entry and verifies its digest
func (s *Store) Get(ctx context.Context, entryID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entry_id, report_id, position, title, canonical, digest, created_at
		 FROM chains WHERE entry_id = ?`, entryID)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, entryID)
	}
	return entry, err
}

// List loads every chain of a report in decision order, verifying digests
func (s *Store) List(ctx context.Context, reportID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, report_id, position, title, canonical, digest, created_at
		 FROM chains WHERE report_id = ? ORDER BY position`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query chains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chains: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, reportID)
	}
	return entries, nil
}

// Reports lists the most recent reports, newest first
func (s *Store) Reports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT report_id, category, severity, message_digest, passages, processed_at
		 FROM reports ORDER BY processed_at DESC, report_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []ReportSummary
	for rows.Next() {
		var (
			r         ReportSummary
			category  string
			severity  sql.NullString
			processed string
		)
		if err := rows.Scan(&r.ReportID, &category, &severity, &r.MessageDigest, &r.Passages, &processed); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Category = model.Category(category)
		r.Severity = severity.String
		r.ProcessedAt, err = time.Parse(timeLayout, processed)
		if err != nil {
			return nil, fmt.Errorf("parse processed_at: %w", err)
		}
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return summaries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e         Entry
		canonical string
		created   string
	)
	if err := row.Scan(&e.ID, &e.ReportID, &e.Position, &e.Title, &canonical, &e.Digest, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan chain: %w", err)
	}

	if digestString(canonical) != e.Digest {
		return Entry{}, fmt.Errorf("%w: entry %s", ErrDigestMismatch, e.ID)
	}

	record, err := reasoning.Decode([]byte(canonical))
	if err != nil {
		return Entry{}, fmt.Errorf("decode entry %s: %w", e.ID, err)
	}
	e.Record = record

	e.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	return e, nil
}

func digestString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
