package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the persistence operations for config entries.
type Repository interface {
	// GetByID retrieves an entry. Returns ErrEntryNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// List retrieves all entries ordered by title.
	List(ctx context.Context) ([]Entry, error)

	// Create inserts a new entry.
	// Returns ErrEntryExists if the ID or unique ID is taken and
	// ErrHostConfigured if the host is taken.
	Create(ctx context.Context, e *Entry) error

	// UpdateOptions replaces an entry's options.
	UpdateOptions(ctx context.Context, id string, opts Options) error

	// Delete removes an entry. Returns ErrEntryNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, unique_id, title, data, options, created_at, updated_at`

// GetByID retrieves an entry by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM config_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// List retrieves all entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM config_entries ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}
	optsJSON, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (id, unique_id, title, host, data, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UniqueID,
		e.Title,
		e.Data.Host,
		string(dataJSON),
		string(optsJSON),
		e.CreatedAt.Format(time.RFC3339),
		e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "config_entries.host") {
				return ErrHostConfigured
			}
			return ErrEntryExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// UpdateOptions replaces an entry's options.
func (r *SQLiteRepository) UpdateOptions(ctx context.Context, id string, opts Options) error {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE config_entries SET options = ?, updated_at = ? WHERE id = ?`,
		string(optsJSON), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating options: %w", err)
	}
	return requireAffected(result)
}

// Delete removes an entry.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM config_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                    Entry
		dataJSON, optsJSON   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.UniqueID, &e.Title, &dataJSON, &optsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling data: %w", err)
	}
	if err := json.Unmarshal([]byte(optsJSON), &e.Options); err != nil {
		return nil, fmt.Errorf("unmarshalling options: %w", err)
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

// isUniqueConstraintError checks for a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
