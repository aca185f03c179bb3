package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account with its embedded watchlist.
// The watchlist lives inside the user document and is only ever mutated by
// rewriting the whole array.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	Watchlist    []WatchlistEntry   `bson:"watchlist" json:"watchlist"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// WatchlistEntry is one saved movie. Title, poster and overview are
// denormalized copies captured at add time and never re-fetched.
type WatchlistEntry struct {
	TMDBID     int    `bson:"tmdb_id" json:"tmdbId"`
	Title      string `bson:"title" json:"title"`
	PosterPath string `bson:"poster_path" json:"posterPath"`
	Overview   string `bson:"overview" json:"overview"`
	// Rating is nil until the user rates the entry; values stay in [0,10]
	// exactly as submitted, 7.5 stays 7.5.
	Rating  *float64  `bson:"rating,omitempty" json:"rating,omitempty"`
	Watched bool      `bson:"watched" json:"watched"`
	AddedAt time.Time `bson:"added_at" json:"addedAt"`
}
