package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"movie-watchlist/internal/domain"
	"movie-watchlist/internal/repository"
)

// UserRepository is an in-memory repository.UserRepository used by tests.
type UserRepository struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]*domain.User)}
}

func (r *UserRepository) Init(ctx context.Context) error { return nil }

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return primitive.NilObjectID, repository.ErrUserExists
		}
	}

	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Watchlist == nil {
		user.Watchlist = []domain.WatchlistEntry{}
	}
	r.users[user.ID] = cloneUser(user)
	return user.ID, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Username == username || user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) UpdateWatchlist(ctx context.Context, id primitive.ObjectID, watchlist []domain.WatchlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if watchlist == nil {
		watchlist = []domain.WatchlistEntry{}
	}
	user.Watchlist = append([]domain.WatchlistEntry(nil), watchlist...)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a user outright. Tests use it to simulate an account
// deleted after its token was issued.
func (r *UserRepository) Delete(id primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	clone.Watchlist = append([]domain.WatchlistEntry(nil), u.Watchlist...)
	return &clone
}
