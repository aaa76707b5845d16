// Package store persists constraints. Implementations return the sentinels
// from pkg/platform/sentinel; the service layer translates them into domain
// errors.
package store

import (
	"context"

	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
)

type Store interface {
	// Create inserts a new constraint. sentinel.ErrAlreadyExists when the id
	// is taken.
	Create(ctx context.Context, c *models.Constraint) error
	// Update replaces the stored constraint wholesale. sentinel.ErrNotFound
	// when the id is unknown, sentinel.ErrConflict when expectedVersion does
	// not match the stored version.
	Update(ctx context.Context, c *models.Constraint, expectedVersion int64) error
	// Delete removes a constraint. sentinel.ErrNotFound when absent.
	Delete(ctx context.Context, id domain.ConstraintID) error
	FindByID(ctx context.Context, id domain.ConstraintID) (*models.Constraint, error)
	// List returns all constraints of a target type in creation order.
	List(ctx context.Context, tt models.TargetType) ([]*models.Constraint, error)
	// ListActive returns only active constraints, same ordering as List.
	ListActive(ctx context.Context, tt models.TargetType) ([]*models.Constraint, error)
}
