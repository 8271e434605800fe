package configentry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for config entry persistence.
type Repository interface {
	// GetByID retrieves an entry by ID.
	// Returns ErrNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*ConfigEntry, error)

	// List retrieves all entries.
	List(ctx context.Context) ([]ConfigEntry, error)

	// ListByDomain retrieves all entries for an integration domain.
	ListByDomain(ctx context.Context, domain string) ([]ConfigEntry, error)

	// Create inserts a new entry.
	// Returns ErrAlreadyConfigured if the (domain, unique id) pair exists.
	Create(ctx context.Context, e *ConfigEntry) error

	// Update modifies an existing entry.
	// Returns ErrNotFound if the entry does not exist.
	Update(ctx context.Context, e *ConfigEntry) error

	// UpdateState updates only the lifecycle state column.
	UpdateState(ctx context.Context, id string, state EntryState) error

	// Delete removes an entry. Entities cascade via the schema.
	// Returns ErrNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

const entryColumns = `id, domain, title, unique_id, data, options, state, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an entry by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*ConfigEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM config_entries WHERE id = ?", entryColumns)

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying config entry: %w", err)
	}
	return e, nil
}

// List retrieves all entries ordered by domain then title.
func (r *SQLiteRepository) List(ctx context.Context) ([]ConfigEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM config_entries ORDER BY domain, title", entryColumns)
	return r.queryEntries(ctx, query)
}

// ListByDomain retrieves all entries for an integration domain.
func (r *SQLiteRepository) ListByDomain(ctx context.Context, domain string) ([]ConfigEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM config_entries WHERE domain = ? ORDER BY title", entryColumns)
	return r.queryEntries(ctx, query, domain)
}

// Create inserts a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, e *ConfigEntry) error {
	if e.Domain == "" || e.Title == "" {
		return fmt.Errorf("%w: domain and title are required", ErrInvalid)
	}

	dataJSON, optionsJSON, err := marshalEntryMaps(e)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.State == "" {
		e.State = StateNotLoaded
	}

	var uniqueID any
	if e.UniqueID != "" {
		uniqueID = e.UniqueID
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (id, domain, title, unique_id, data, options, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Domain, e.Title, uniqueID, dataJSON, optionsJSON, string(e.State),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyConfigured
		}
		return fmt.Errorf("inserting config entry: %w", err)
	}
	return nil
}

// Update modifies an existing entry.
func (r *SQLiteRepository) Update(ctx context.Context, e *ConfigEntry) error {
	dataJSON, optionsJSON, err := marshalEntryMaps(e)
	if err != nil {
		return err
	}

	e.UpdatedAt = time.Now().UTC()

	var uniqueID any
	if e.UniqueID != "" {
		uniqueID = e.UniqueID
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE config_entries
		SET title = ?, unique_id = ?, data = ?, options = ?, state = ?, updated_at = ?
		WHERE id = ?`,
		e.Title, uniqueID, dataJSON, optionsJSON, string(e.State),
		e.UpdatedAt.Format(time.RFC3339),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating config entry: %w", err)
	}
	return checkRowsAffected(result)
}

// UpdateState updates only the lifecycle state column.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state EntryState) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE config_entries SET state = ?, updated_at = ? WHERE id = ?`,
		string(state),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating config entry state: %w", err)
	}
	return checkRowsAffected(result)
}

// Delete removes an entry.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting config entry: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]ConfigEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying config entries: %w", err)
	}
	defer rows.Close()

	var entries []ConfigEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning config entry row: %w", err)
		}
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*ConfigEntry, error) {
	var (
		e           ConfigEntry
		uniqueID    sql.NullString
		dataJSON    string
		optionsJSON string
		state       string
		createdAt   string
		updatedAt   string
	)

	if err := s.Scan(&e.ID, &e.Domain, &e.Title, &uniqueID, &dataJSON, &optionsJSON,
		&state, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	e.UniqueID = uniqueID.String
	e.State = EntryState(state)

	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling entry data: %w", err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &e.Options); err != nil {
		return nil, fmt.Errorf("unmarshalling entry options: %w", err)
	}

	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &e, nil
}

func marshalEntryMaps(e *ConfigEntry) (dataJSON, optionsJSON string, err error) {
	if e.Data == nil {
		e.Data = Data{}
	}
	if e.Options == nil {
		e.Options = Data{}
	}

	data, err := json.Marshal(e.Data)
	if err != nil {
		return "", "", fmt.Errorf("marshalling entry data: %w", err)
	}
	options, err := json.Marshal(e.Options)
	if err != nil {
		return "", "", fmt.Errorf("marshalling entry options: %w", err)
	}
	return string(data), string(options), nil
}

func checkRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
