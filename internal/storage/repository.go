package storage

import (
	"context"

	"github.com/skillcoin/learn-engine/internal/models"
)

// UserRepository defines the interface for user account persistence.
// Implementations return (nil, nil) for lookups with no match; an error
// always means the lookup itself failed.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error

	Ping(ctx context.Context) error
	Close() error
}
