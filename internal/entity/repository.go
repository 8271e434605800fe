package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for entity persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an entity by its unique identifier.
	// Returns ErrNotFound if the entity does not exist.
	GetByID(ctx context.Context, id string) (*Entity, error)

	// GetByUniqueID retrieves an entity by its integration-scoped unique ID.
	// Returns ErrNotFound if the entity does not exist.
	GetByUniqueID(ctx context.Context, entryID, uniqueID string) (*Entity, error)

	// List retrieves all entities.
	List(ctx context.Context) ([]Entity, error)

	// ListByEntry retrieves all entities owned by a config entry.
	ListByEntry(ctx context.Context, entryID string) ([]Entity, error)

	// ListByPlatform retrieves all entities on a platform.
	ListByPlatform(ctx context.Context, platform Platform) ([]Entity, error)

	// Create inserts a new entity.
	// Returns ErrExists if the (entry, unique id) pair already exists.
	Create(ctx context.Context, e *Entity) error

	// Update modifies an existing entity.
	// Returns ErrNotFound if the entity does not exist.
	Update(ctx context.Context, e *Entity) error

	// Delete removes an entity by ID.
	// Returns ErrNotFound if the entity does not exist.
	Delete(ctx context.Context, id string) error

	// DeleteByEntry removes all entities owned by a config entry.
	DeleteByEntry(ctx context.Context, entryID string) error

	// UpdateState updates only the state fields of an entity.
	// This is optimised for frequent state changes from coordinators.
	UpdateState(ctx context.Context, id string, state State, updatedAt time.Time) error

	// UpdateAvailability updates only the availability flag.
	UpdateAvailability(ctx context.Context, id string, available bool) error
}

// entityColumns is the column list shared by all SELECT queries.
const entityColumns = `id, entry_id, unique_id, name, platform, device_class, unit,
	manufacturer, model, sw_version, available, state, state_updated_at,
	created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an entity by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities WHERE id = ?", entityColumns)

	e, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying entity by id: %w", err)
	}
	return e, nil
}

// GetByUniqueID retrieves an entity by its integration-scoped unique ID.
func (r *SQLiteRepository) GetByUniqueID(ctx context.Context, entryID, uniqueID string) (*Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities WHERE entry_id = ? AND unique_id = ?", entityColumns)

	e, err := scanEntity(r.db.QueryRowContext(ctx, query, entryID, uniqueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying entity by unique id: %w", err)
	}
	return e, nil
}

// List retrieves all entities ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities ORDER BY name", entityColumns)
	return r.queryEntities(ctx, query)
}

// ListByEntry retrieves all entities owned by a config entry.
func (r *SQLiteRepository) ListByEntry(ctx context.Context, entryID string) ([]Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities WHERE entry_id = ? ORDER BY name", entityColumns)
	return r.queryEntities(ctx, query, entryID)
}

// ListByPlatform retrieves all entities on a platform.
func (r *SQLiteRepository) ListByPlatform(ctx context.Context, platform Platform) ([]Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities WHERE platform = ? ORDER BY name", entityColumns)
	return r.queryEntities(ctx, query, string(platform))
}

// Create inserts a new entity.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entity) error {
	if err := Validate(e); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(e.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entities (id, entry_id, unique_id, name, platform, device_class, unit,
			manufacturer, model, sw_version, available, state, state_updated_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EntryID, e.UniqueID, e.Name, string(e.Platform),
		nullString(string(e.DeviceClass)), nullString(e.Unit),
		nullString(e.Device.Manufacturer), nullString(e.Device.Model), nullString(e.Device.SWVersion),
		boolToInt(e.Available), string(stateJSON), nullTime(e.StateUpdatedAt),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrExists
		}
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// Update modifies an existing entity.
func (r *SQLiteRepository) Update(ctx context.Context, e *Entity) error {
	if err := Validate(e); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(e.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	e.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE entities
		SET name = ?, platform = ?, device_class = ?, unit = ?,
			manufacturer = ?, model = ?, sw_version = ?,
			available = ?, state = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, string(e.Platform),
		nullString(string(e.DeviceClass)), nullString(e.Unit),
		nullString(e.Device.Manufacturer), nullString(e.Device.Model), nullString(e.Device.SWVersion),
		boolToInt(e.Available), string(stateJSON), nullTime(e.StateUpdatedAt),
		e.UpdatedAt.Format(time.RFC3339),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	return checkRowsAffected(result)
}

// Delete removes an entity by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	return checkRowsAffected(result)
}

// DeleteByEntry removes all entities owned by a config entry.
// Deleting zero rows is not an error: an entry may own no entities yet.
func (r *SQLiteRepository) DeleteByEntry(ctx context.Context, entryID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM entities WHERE entry_id = ?", entryID); err != nil {
		return fmt.Errorf("deleting entities for entry: %w", err)
	}
	return nil
}

// UpdateState updates only the state fields of an entity.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State, updatedAt time.Time) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE entities
		SET state = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ?`,
		string(stateJSON),
		updatedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating entity state: %w", err)
	}
	return checkRowsAffected(result)
}

// UpdateAvailability updates only the availability flag.
func (r *SQLiteRepository) UpdateAvailability(ctx context.Context, id string, available bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entities SET available = ?, updated_at = ? WHERE id = ?`,
		boolToInt(available),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating entity availability: %w", err)
	}
	return checkRowsAffected(result)
}

// queryEntities runs a multi-row query and scans the results.
func (r *SQLiteRepository) queryEntities(ctx context.Context, query string, args ...any) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		entities = append(entities, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// scanner abstracts sql.Row and sql.Rows for scanEntity.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntity scans a single entity row.
func scanEntity(s scanner) (*Entity, error) {
	var (
		e              Entity
		platform       string
		deviceClass    sql.NullString
		unit           sql.NullString
		manufacturer   sql.NullString
		model          sql.NullString
		swVersion      sql.NullString
		available      int
		stateJSON      string
		stateUpdatedAt sql.NullString
		createdAt      string
		updatedAt      string
	)

	if err := s.Scan(
		&e.ID, &e.EntryID, &e.UniqueID, &e.Name, &platform, &deviceClass, &unit,
		&manufacturer, &model, &swVersion, &available, &stateJSON, &stateUpdatedAt,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	e.Platform = Platform(platform)
	e.DeviceClass = DeviceClass(deviceClass.String)
	e.Unit = unit.String
	e.Device = DeviceInfo{
		Manufacturer: manufacturer.String,
		Model:        model.String,
		SWVersion:    swVersion.String,
	}
	e.Available = available != 0

	if err := json.Unmarshal([]byte(stateJSON), &e.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	if stateUpdatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, stateUpdatedAt.String); err == nil {
			e.StateUpdatedAt = &t
		}
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &e, nil
}

// checkRowsAffected converts a zero-row result into ErrNotFound.
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

// nullString converts an empty string to a SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullTime converts a nil time pointer to a SQL NULL.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
