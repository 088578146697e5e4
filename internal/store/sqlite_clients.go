package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitalsync/vitalsync/internal/types"
	"github.com/vitalsync/vitalsync/internal/validation"
)

const clientColumns = `base_entity_id, first_name, last_name, gender, birth_date,
	attributes, relationships, last_edit`

// scanClient scans a row into a Client, handling JSON columns and timestamps.
func scanClient(scanner interface{ Scan(...any) error }) (*types.Client, error) {
	var c types.Client
	var birthDate, attributes, relationships, lastEdit sql.NullString

	err := scanner.Scan(
		&c.BaseEntityID,
		&c.FirstName,
		&c.LastName,
		&c.Gender,
		&birthDate,
		&attributes,
		&relationships,
		&lastEdit,
	)
	if err != nil {
		return nil, err
	}

	c.BirthDate = parseTime(birthDate)
	c.LastEdit = parseTime(lastEdit)

	if attributes.Valid && attributes.String != "" {
		if err := json.Unmarshal([]byte(attributes.String), &c.Attributes); err != nil {
			return nil, fmt.Errorf("parse attributes JSON: %w", err)
		}
	}
	if relationships.Valid && relationships.String != "" {
		if err := json.Unmarshal([]byte(relationships.String), &c.Relationships); err != nil {
			return nil, fmt.Errorf("parse relationships JSON: %w", err)
		}
	}

	return &c, nil
}

// FindClientsByBaseEntityIDs returns the clients matching the given ids.
func (s *SQLiteStore) FindClientsByBaseEntityIDs(ctx context.Context, ids []string) ([]types.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("SELECT %s FROM clients WHERE base_entity_id IN (%s)",
		clientColumns, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []types.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// GetClientByBaseEntityID returns a single client by base entity id.
func (s *SQLiteStore) GetClientByBaseEntityID(ctx context.Context, id string) (*types.Client, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM clients WHERE base_entity_id = ?", clientColumns), id)

	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan client: %w", err)
	}
	return c, nil
}

// UpsertClient inserts or updates a client keyed by base entity id.
func (s *SQLiteStore) UpsertClient(ctx context.Context, client *types.Client) error {
	if errs := validation.ValidateClient(client); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredFields, errs[0].Field)
	}

	attributesJSON, err := marshalJSONField(client.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	relationshipsJSON, err := marshalJSONField(client.Relationships)
	if err != nil {
		return fmt.Errorf("marshal relationships: %w", err)
	}

	now := time.Now().UTC()
	client.LastEdit = &now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (base_entity_id, first_name, last_name, gender, birth_date,
			attributes, relationships, last_edit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(base_entity_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			gender = excluded.gender,
			birth_date = excluded.birth_date,
			attributes = excluded.attributes,
			relationships = excluded.relationships,
			last_edit = excluded.last_edit
	`, client.BaseEntityID, client.FirstName, client.LastName, client.Gender,
		formatTime(client.BirthDate), attributesJSON, relationshipsJSON,
		formatTime(client.LastEdit))
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}
