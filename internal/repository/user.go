package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"movie-watchlist/internal/domain"
)

var (
	// ErrUserNotFound indicates no user document matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists indicates a username or email collision on create.
	ErrUserExists = errors.New("user already exists")
)

// UserRepository defines persistence operations for User documents.
// UpdateWatchlist rewrites the embedded array in a single document write;
// there is no finer-grained mutation.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	UpdateWatchlist(ctx context.Context, id primitive.ObjectID, watchlist []domain.WatchlistEntry) error
}
