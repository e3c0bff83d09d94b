package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mpesa-console/internal/models"
)

const applicationColumns = `
	id::text, name, callback_url, consumer_key, consumer_secret,
	business_short_code, passkey, COALESCE(bearer_token, ''),
	COALESCE(party_a, ''), COALESCE(party_b, ''), app_id, app_secret,
	is_active, created_at, updated_at`

func scanApplication(row pgx.Row) (models.Application, error) {
	var a models.Application
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.CallbackURL,
		&a.ConsumerKey,
		&a.ConsumerSecret,
		&a.BusinessShortCode,
		&a.Passkey,
		&a.BearerToken,
		&a.PartyA,
		&a.PartyB,
		&a.AppID,
		&a.AppSecret,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// ListApplications returns every application, newest first.
func (s *Store) ListApplications(ctx context.Context) ([]models.Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read applications: %w", err)
	}
	return apps, nil
}

// ApplicationNames returns the id to name lookup table.
func (s *Store) ApplicationNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, name FROM applications`)
	if err != nil {
		return nil, fmt.Errorf("failed to query application names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan application name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read application names: %w", err)
	}
	return names, nil
}

// GetApplication returns one application or models.ErrNotFound.
func (s *Store) GetApplication(ctx context.Context, id string) (models.Application, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id::text = $1`, id)
	a, err := scanApplication(row)
	if err != nil {
		return models.Application{}, fmt.Errorf("failed to get application %s: %w", id, notFound(err))
	}
	return a, nil
}

// InsertApplication stores a freshly minted application.
func (s *Store) InsertApplication(ctx context.Context, a models.Application) error {
	insertSQL := `
		INSERT INTO applications (
			id, name, callback_url, consumer_key, consumer_secret,
			business_short_code, passkey, bearer_token, party_a, party_b,
			app_id, app_secret, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, insertSQL,
		a.ID, a.Name, a.CallbackURL, a.ConsumerKey, a.ConsumerSecret,
		a.BusinessShortCode, a.Passkey, a.BearerToken, a.PartyA, a.PartyB,
		a.AppID, a.AppSecret, a.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err, applicationNameKey) {
			return fmt.Errorf("failed to insert application: %w", models.ErrDuplicateName)
		}
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

// UpdateApplication overwrites the editable fields. The minted app_id and
// app_secret are never touched.
func (s *Store) UpdateApplication(ctx context.Context, id string, in models.ApplicationInput) error {
	updateSQL := `
		UPDATE applications
		SET name = $1,
		    callback_url = $2,
		    consumer_key = $3,
		    consumer_secret = $4,
		    business_short_code = $5,
		    passkey = $6,
		    bearer_token = $7,
		    party_a = $8,
		    party_b = $9,
		    is_active = COALESCE($10, is_active),
		    updated_at = NOW()
		WHERE id::text = $11
	`

	result, err := s.pool.Exec(ctx, updateSQL,
		in.Name, in.CallbackURL, in.ConsumerKey, in.ConsumerSecret,
		in.BusinessShortCode, in.Passkey, in.BearerToken, in.PartyA, in.PartyB,
		in.IsActive, id,
	)
	if err != nil {
		if isUniqueViolation(err, applicationNameKey) {
			return fmt.Errorf("failed to update application %s: %w", id, models.ErrDuplicateName)
		}
		return fmt.Errorf("failed to update application %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to update application %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetApplicationActive flips the active flag.
func (s *Store) SetApplicationActive(ctx context.Context, id string, active bool) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE applications SET is_active = $1, updated_at = NOW() WHERE id::text = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set application %s active: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to set application %s active: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeleteApplication hard-deletes an application.
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM applications WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete application %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete application %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ApplicationNameTaken reports whether another application already uses
// name, compared case-insensitively. excludeID may be empty.
func (s *Store) ApplicationNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM applications
			WHERE lower(name) = lower($1) AND ($2 = '' OR id::text <> $2)
		)`, name, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check application name: %w", err)
	}
	return taken, nil
}
