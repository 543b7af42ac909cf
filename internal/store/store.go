// Package store keeps a local history of finished agent exchanges so
// the CLI can show past analyses and their outcomes without asking the
// server.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an exchange ID is unknown.
var ErrNotFound = errors.New("exchange not found")

// Exchange is one recorded analyze (and optionally implement) run.
type Exchange struct {
	ID              string
	SessionID       string
	RepoURL         string
	IssueNumber     int
	IssueTitle      string
	Outcome         string // analyzed, completed, error
	SolutionSummary string
	Branch          string
	BranchURL       string
	PRURL           string
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store is a SQLite-backed exchange history.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the history database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		repo_url TEXT NOT NULL,
		issue_number INTEGER NOT NULL,
		issue_title TEXT NOT NULL,
		outcome TEXT NOT NULL,
		solution_summary TEXT,
		branch TEXT,
		branch_url TEXT,
		pr_url TEXT,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	return err
}

// Save inserts or updates an exchange. A missing ID is assigned.
func (s *Store) Save(ctx context.Context, ex *Exchange) error {
	now := time.Now().UTC()
	if ex.ID == "" {
		ex.ID = uuid.New().String()
		ex.CreatedAt = now
	}
	ex.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO exchanges
		(id, session_id, repo_url, issue_number, issue_title, outcome,
		 solution_summary, branch, branch_url, pr_url, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			outcome = excluded.outcome,
			solution_summary = excluded.solution_summary,
			branch = excluded.branch,
			branch_url = excluded.branch_url,
			pr_url = excluded.pr_url,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		ex.ID, ex.SessionID, ex.RepoURL, ex.IssueNumber, ex.IssueTitle,
		ex.Outcome, ex.SolutionSummary, ex.Branch, ex.BranchURL, ex.PRURL,
		ex.Error, ex.CreatedAt, ex.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

// Get returns one exchange by ID.
func (s *Store) Get(ctx context.Context, id string) (*Exchange, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, session_id, repo_url,
		issue_number, issue_title, outcome, solution_summary, branch,
		branch_url, pr_url, error, created_at, updated_at
		FROM exchanges WHERE id = ?`, id)

	ex, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}
	return ex, nil
}

// List returns all exchanges, newest first.
func (s *Store) List(ctx context.Context) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, repo_url,
		issue_number, issue_title, outcome, solution_summary, branch,
		branch_url, pr_url, error, created_at, updated_at
		FROM exchanges ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		out = append(out, *ex)
	}
	return out, rows.Err()
}

// Delete removes an exchange from the history.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete exchange: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExchange(row scanner) (*Exchange, error) {
	var ex Exchange
	var sessionID, summary, branch, branchURL, prURL, errMsg sql.NullString
	err := row.Scan(&ex.ID, &sessionID, &ex.RepoURL, &ex.IssueNumber,
		&ex.IssueTitle, &ex.Outcome, &summary, &branch, &branchURL,
		&prURL, &errMsg, &ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ex.SessionID = sessionID.String
	ex.SolutionSummary = summary.String
	ex.Branch = branch.String
	ex.BranchURL = branchURL.String
	ex.PRURL = prURL.String
	ex.Error = errMsg.String
	return &ex, nil
}
