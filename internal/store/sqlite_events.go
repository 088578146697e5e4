package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vitalsync/vitalsync/internal/search"
	"github.com/vitalsync/vitalsync/internal/types"
	"github.com/vitalsync/vitalsync/internal/validation"
)

const eventColumns = `id, form_submission_id, base_entity_id, event_type, entity_type,
	provider_id, location_id, team, team_id, event_date, last_edit,
	server_version, is_deleted, details, created_by`

// eventSortColumns whitelists the sortable fields exposed to callers.
var eventSortColumns = map[string]string{
	"serverVersion":  "server_version",
	"server_version": "server_version",
	"eventDate":      "event_date",
	"event_date":     "event_date",
	"lastEdit":       "last_edit",
	"last_edit":      "last_edit",
}

// scanEvent scans a row into an Event, handling JSON details and timestamps.
func scanEvent(scanner interface{ Scan(...any) error }) (*types.Event, error) {
	var e types.Event
	var eventDate, lastEdit, details sql.NullString
	var isDeleted int

	err := scanner.Scan(
		&e.ID,
		&e.FormSubmissionID,
		&e.BaseEntityID,
		&e.EventType,
		&e.EntityType,
		&e.ProviderID,
		&e.LocationID,
		&e.Team,
		&e.TeamID,
		&eventDate,
		&lastEdit,
		&e.ServerVersion,
		&isDeleted,
		&details,
		&e.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	e.EventDate = parseTime(eventDate)
	e.LastEdit = parseTime(lastEdit)
	e.IsDeleted = isDeleted != 0

	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
			return nil, fmt.Errorf("parse details JSON: %w", err)
		}
	}

	return &e, nil
}

// buildEventWhere translates criteria into a WHERE clause with AND semantics.
func buildEventWhere(criteria search.EventCriteria) (string, []any) {
	var conds []string
	var args []any

	addEq := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}

	addEq("provider_id", criteria.ProviderID)
	addEq("location_id", criteria.LocationID)
	addEq("base_entity_id", criteria.BaseEntityID)
	addEq("team", criteria.Team)
	addEq("team_id", criteria.TeamID)
	addEq("event_type", criteria.EventType)
	addEq("entity_type", criteria.EntityType)

	if criteria.VersionFloor != nil {
		conds = append(conds, "server_version >= ?")
		args = append(args, *criteria.VersionFloor)
	}
	if criteria.EventDateFrom != nil {
		conds = append(conds, "event_date >= ?")
		args = append(args, criteria.EventDateFrom.UTC().Format(time.RFC3339Nano))
	}
	if criteria.EventDateTo != nil {
		conds = append(conds, "event_date <= ?")
		args = append(args, criteria.EventDateTo.UTC().Format(time.RFC3339Nano))
	}
	if criteria.LastEditFrom != nil {
		conds = append(conds, "last_edit >= ?")
		args = append(args, criteria.LastEditFrom.UTC().Format(time.RFC3339Nano))
	}
	if criteria.LastEditTo != nil {
		conds = append(conds, "last_edit <= ?")
		args = append(args, criteria.LastEditTo.UTC().Format(time.RFC3339Nano))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindEvents returns events matching the criteria, ordered and capped.
func (s *SQLiteStore) FindEvents(ctx context.Context, criteria search.EventCriteria, sortField, sortDirection string, limit int) ([]types.Event, error) {
	column, ok := eventSortColumns[sortField]
	if !ok {
		column = "server_version"
	}
	direction := "ASC"
	if strings.EqualFold(sortDirection, "desc") {
		direction = "DESC"
	}

	where, args := buildEventWhere(criteria)
	args = append(args, limit)

	query := fmt.Sprintf("SELECT %s FROM events%s ORDER BY %s %s LIMIT ?",
		eventColumns, where, column, direction)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of events matching the criteria.
func (s *SQLiteStore) CountEvents(ctx context.Context, criteria search.EventCriteria) (int64, error) {
	where, args := buildEventWhere(criteria)

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// GetEventByID returns the event with the given id.
func (s *SQLiteStore) GetEventByID(ctx context.Context, id string) (*types.Event, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM events WHERE id = ?", eventColumns), id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return e, nil
}

// UpsertEvent inserts or updates an event keyed by form submission id.
// The next server version is assigned inside the transaction, so versions are
// strictly increasing across all writes.
func (s *SQLiteStore) UpsertEvent(ctx context.Context, event *types.Event, actingUser string) (*types.Event, error) {
	if errs := validation.ValidateEvent(event); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredFields, errs[0].Field)
	}
	if strings.TrimSpace(event.FormSubmissionID) == "" {
		return nil, fmt.Errorf("%w: formSubmissionId", ErrMissingRequiredFields)
	}

	detailsJSON, err := marshalJSONField(event.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextVersion int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(server_version), 0) + 1 FROM events").Scan(&nextVersion); err != nil {
		return nil, fmt.Errorf("next server version: %w", err)
	}

	stored := *event
	now := time.Now().UTC()
	stored.LastEdit = &now
	stored.ServerVersion = nextVersion

	var existingID, existingCreatedBy string
	err = tx.QueryRowContext(ctx,
		"SELECT id, created_by FROM events WHERE form_submission_id = ?",
		event.FormSubmissionID).Scan(&existingID, &existingCreatedBy)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		stored.ID = event.ID
		if stored.ID == "" {
			stored.ID = ulid.Make().String()
		}
		stored.CreatedBy = actingUser
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (id, form_submission_id, base_entity_id, event_type, entity_type,
				provider_id, location_id, team, team_id, event_date, last_edit,
				server_version, is_deleted, details, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, stored.ID, stored.FormSubmissionID, stored.BaseEntityID, stored.EventType,
			stored.EntityType, stored.ProviderID, stored.LocationID, stored.Team,
			stored.TeamID, formatTime(stored.EventDate), formatTime(stored.LastEdit),
			stored.ServerVersion, boolToInt(stored.IsDeleted), detailsJSON, stored.CreatedBy)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("find existing event: %w", err)
	default:
		// Identity and original authorship survive updates.
		stored.ID = existingID
		stored.CreatedBy = existingCreatedBy
		_, err = tx.ExecContext(ctx, `
			UPDATE events SET base_entity_id = ?, event_type = ?, entity_type = ?,
				provider_id = ?, location_id = ?, team = ?, team_id = ?,
				event_date = ?, last_edit = ?, server_version = ?, is_deleted = ?, details = ?
			WHERE form_submission_id = ?
		`, stored.BaseEntityID, stored.EventType, stored.EntityType, stored.ProviderID,
			stored.LocationID, stored.Team, stored.TeamID, formatTime(stored.EventDate),
			formatTime(stored.LastEdit), stored.ServerVersion, boolToInt(stored.IsDeleted),
			detailsJSON, stored.FormSubmissionID)
		if err != nil {
			return nil, fmt.Errorf("update event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &stored, nil
}

// FindIDsByEventType returns event ids of the given type ordered by server
// version ascending, plus the highest server version among them.
func (s *SQLiteStore) FindIDsByEventType(ctx context.Context, eventType string, includeDeleted bool, versionFloor int64, limit int, from, to *time.Time) ([]string, int64, error) {
	conds := []string{"server_version >= ?"}
	args := []any{versionFloor}

	if eventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, eventType)
	}
	if !includeDeleted {
		conds = append(conds, "is_deleted = 0")
	}
	if from != nil {
		conds = append(conds, "event_date >= ?")
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if to != nil {
		conds = append(conds, "event_date <= ?")
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		"SELECT id, server_version FROM events WHERE %s ORDER BY server_version ASC LIMIT ?",
		strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query event ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	var lastVersion int64
	for rows.Next() {
		var id string
		var version int64
		if err := rows.Scan(&id, &version); err != nil {
			return nil, 0, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
		lastVersion = version
	}
	return ids, lastVersion, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// marshalJSONField serializes a map column, storing NULL for empty maps.
func marshalJSONField(v any) (any, error) {
	switch m := v.(type) {
	case map[string]string:
		if len(m) == 0 {
			return nil, nil
		}
	case map[string][]string:
		if len(m) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
