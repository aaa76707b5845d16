package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
	"storegate/pkg/platform/sentinel"
	"storegate/pkg/requestcontext"
)

// Schema is the DDL for the constraints table. Applied by migrations in
// deployment; EnsureSchema runs it directly for tests and local setups.
const Schema = `
CREATE TABLE IF NOT EXISTS constraints (
	id                      UUID PRIMARY KEY,
	target_type             TEXT NOT NULL,
	name                    TEXT NOT NULL,
	is_active               BOOLEAN NOT NULL DEFAULT TRUE,
	target_method_ids       TEXT[] NOT NULL,
	conditions              JSONB NOT NULL,
	is_custom_error_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	custom_error_message    TEXT NOT NULL DEFAULT '',
	version                 BIGINT NOT NULL DEFAULT 1,
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS constraints_target_type_idx
	ON constraints (target_type, created_at, id);
`

// Postgres is the production Store backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure constraints schema: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, c *models.Constraint) error {
	conditions, err := json.Marshal(c.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	now := requestcontext.Now(ctx)
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = p.pool.Exec(ctx, `
		INSERT INTO constraints
			(id, target_type, name, is_active, target_method_ids, conditions,
			 is_custom_error_enabled, custom_error_message, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID.String(), string(c.TargetType), c.Name, c.IsActive, c.TargetMethodIDs,
		conditions, c.IsCustomErrorEnabled, c.CustomErrorMessage,
		c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert constraint: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, c *models.Constraint, expectedVersion int64) error {
	conditions, err := json.Marshal(c.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	c.Version = expectedVersion + 1
	c.UpdatedAt = requestcontext.Now(ctx)

	tag, err := p.pool.Exec(ctx, `
		UPDATE constraints SET
			name = $2, is_active = $3, target_method_ids = $4, conditions = $5,
			is_custom_error_enabled = $6, custom_error_message = $7,
			version = $8, updated_at = $9
		WHERE id = $1 AND version = $10`,
		c.ID.String(), c.Name, c.IsActive, c.TargetMethodIDs, conditions,
		c.IsCustomErrorEnabled, c.CustomErrorMessage,
		c.Version, c.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update constraint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a version race.
		var exists bool
		if err := p.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM constraints WHERE id = $1)`,
			c.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("check constraint exists: %w", err)
		}
		if exists {
			return sentinel.ErrConflict
		}
		return sentinel.ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id domain.ConstraintID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM constraints WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete constraint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectColumns = `
	id, target_type, name, is_active, target_method_ids, conditions,
	is_custom_error_enabled, custom_error_message, version, created_at, updated_at`

func (p *Postgres) FindByID(ctx context.Context, id domain.ConstraintID) (*models.Constraint, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM constraints WHERE id = $1`, id.String())
	c, err := scanConstraint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find constraint: %w", err)
	}
	return c, nil
}

func (p *Postgres) List(ctx context.Context, tt models.TargetType) ([]*models.Constraint, error) {
	return p.list(ctx, tt, false)
}

func (p *Postgres) ListActive(ctx context.Context, tt models.TargetType) ([]*models.Constraint, error) {
	return p.list(ctx, tt, true)
}

func (p *Postgres) list(ctx context.Context, tt models.TargetType, activeOnly bool) ([]*models.Constraint, error) {
	query := `SELECT ` + selectColumns + ` FROM constraints WHERE target_type = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at, id`

	rows, err := p.pool.Query(ctx, query, string(tt))
	if err != nil {
		return nil, fmt.Errorf("list constraints: %w", err)
	}
	defer rows.Close()

	var out []*models.Constraint
	for rows.Next() {
		c, err := scanConstraint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan constraint: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list constraints: %w", err)
	}
	return out, nil
}

func scanConstraint(row pgx.Row) (*models.Constraint, error) {
	var (
		c          models.Constraint
		id         string
		targetType string
		conditions []byte
	)
	err := row.Scan(&id, &targetType, &c.Name, &c.IsActive, &c.TargetMethodIDs,
		&conditions, &c.IsCustomErrorEnabled, &c.CustomErrorMessage,
		&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := domain.ParseConstraintID(id)
	if err != nil {
		return nil, err
	}
	c.ID = parsed
	c.TargetType = models.TargetType(targetType)
	if err := json.Unmarshal(conditions, &c.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	return &c, nil
}
