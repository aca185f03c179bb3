package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"movie-watchlist/internal/domain"
	"movie-watchlist/internal/repository"
)

var (
	// ErrMovieIDRequired is returned when an operation is missing the movie id.
	ErrMovieIDRequired = errors.New("movie id is required")
	// ErrDuplicateEntry is returned when adding a movie already on the watchlist.
	ErrDuplicateEntry = errors.New("movie already in watchlist")
	// ErrEntryNotFound is returned when rating or marking a movie that is not
	// on the watchlist.
	ErrEntryNotFound = errors.New("watchlist entry not found")
	// ErrInvalidRating is returned when a rating falls outside [0,10].
	ErrInvalidRating = errors.New("rating must be between 0 and 10")
)

// WatchlistService manages the embedded watchlist of one authenticated user.
//
// Every mutation loads the user document, edits the in-memory watchlist and
// writes the whole array back. Two concurrent mutations for the same user
// race at the document write; last persisted write wins.
type WatchlistService interface {
	List(ctx context.Context, userID string) ([]domain.WatchlistEntry, error)
	Add(ctx context.Context, userID string, movieID int, title, posterPath, overview string) ([]domain.WatchlistEntry, error)
	Remove(ctx context.Context, userID string, movieID int) ([]domain.WatchlistEntry, error)
	Rate(ctx context.Context, userID string, movieID int, rating float64) ([]domain.WatchlistEntry, error)
	SetWatched(ctx context.Context, userID string, movieID int, watched bool) ([]domain.WatchlistEntry, error)
}

type watchlistService struct {
	users repository.UserRepository
}

func NewWatchlistService(users repository.UserRepository) WatchlistService {
	return &watchlistService{users: users}
}

func (s *watchlistService) List(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	user, _, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Watchlist, nil
}

func (s *watchlistService) Add(ctx context.Context, userID string, movieID int, title, posterPath, overview string) ([]domain.WatchlistEntry, error) {
	if movieID <= 0 {
		return nil, ErrMovieIDRequired
	}

	user, oid, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Uniqueness is a linear scan over the embedded array, not a store
	// index; concurrent adds for the same user can still race.
	for i := range user.Watchlist {
		if user.Watchlist[i].TMDBID == movieID {
			return nil, ErrDuplicateEntry
		}
	}

	watchlist := append(user.Watchlist, domain.WatchlistEntry{
		TMDBID:     movieID,
		Title:      title,
		PosterPath: posterPath,
		Overview:   overview,
		Watched:    false,
		AddedAt:    time.Now().UTC(),
	})

	if err := s.persist(ctx, oid, watchlist); err != nil {
		return nil, err
	}
	return watchlist, nil
}

func (s *watchlistService) Remove(ctx context.Context, userID string, movieID int) ([]domain.WatchlistEntry, error) {
	if movieID <= 0 {
		return nil, ErrMovieIDRequired
	}

	user, oid, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Removing an absent movie is a no-op, not an error.
	watchlist := make([]domain.WatchlistEntry, 0, len(user.Watchlist))
	for i := range user.Watchlist {
		if user.Watchlist[i].TMDBID != movieID {
			watchlist = append(watchlist, user.Watchlist[i])
		}
	}

	if err := s.persist(ctx, oid, watchlist); err != nil {
		return nil, err
	}
	return watchlist, nil
}

func (s *watchlistService) Rate(ctx context.Context, userID string, movieID int, rating float64) ([]domain.WatchlistEntry, error) {
	if movieID <= 0 {
		return nil, ErrMovieIDRequired
	}
	if rating < 0 || rating > 10 {
		return nil, ErrInvalidRating
	}

	return s.updateEntry(ctx, userID, movieID, func(entry *domain.WatchlistEntry) {
		// Stored verbatim; precision is the caller's, never rounded here.
		r := rating
		entry.Rating = &r
	})
}

func (s *watchlistService) SetWatched(ctx context.Context, userID string, movieID int, watched bool) ([]domain.WatchlistEntry, error) {
	if movieID <= 0 {
		return nil, ErrMovieIDRequired
	}

	return s.updateEntry(ctx, userID, movieID, func(entry *domain.WatchlistEntry) {
		entry.Watched = watched
	})
}

// updateEntry mutates the matching entry in place and persists the whole
// array. Rating and SetWatched never implicitly add a movie.
func (s *watchlistService) updateEntry(ctx context.Context, userID string, movieID int, mutate func(*domain.WatchlistEntry)) ([]domain.WatchlistEntry, error) {
	user, oid, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range user.Watchlist {
		if user.Watchlist[i].TMDBID == movieID {
			mutate(&user.Watchlist[i])
			found = true
			break
		}
	}
	if !found {
		return nil, ErrEntryNotFound
	}

	if err := s.persist(ctx, oid, user.Watchlist); err != nil {
		return nil, err
	}
	return user.Watchlist, nil
}

func (s *watchlistService) loadUser(ctx context.Context, userID string) (*domain.User, primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, primitive.NilObjectID, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, primitive.NilObjectID, ErrUserNotFound
		}
		return nil, primitive.NilObjectID, err
	}
	return user, oid, nil
}

func (s *watchlistService) persist(ctx context.Context, id primitive.ObjectID, watchlist []domain.WatchlistEntry) error {
	if err := s.users.UpdateWatchlist(ctx, id, watchlist); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
