package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"movie-watchlist/internal/auth"
	"movie-watchlist/internal/domain"
	"movie-watchlist/internal/service"
	"movie-watchlist/internal/tmdb"
)

// Catalog is the read-only movie metadata collaborator.
type Catalog interface {
	Search(ctx context.Context, query string) (*tmdb.MovieList, error)
	Trending(ctx context.Context) (*tmdb.MovieList, error)
	Movie(ctx context.Context, id int) (*tmdb.Movie, error)
}

// HealthChecker reports store reachability at request time.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	watchlist service.WatchlistService
	catalog   Catalog
	issuer    *auth.Issuer
	health    HealthChecker
	logger    *logrus.Logger
}

func NewHandler(users service.UserService, watchlist service.WatchlistService, catalog Catalog, issuer *auth.Issuer, health HealthChecker, logger *logrus.Logger) *Handler {
	return &Handler{
		users:     users,
		watchlist: watchlist,
		catalog:   catalog,
		issuer:    issuer,
		health:    health,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	if h.logger != nil {
		router.Use(requestLogger(h.logger))
	}

	api := router.Group("/api")
	{
		api.GET("/health", h.healthCheck)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", h.signup)
			authGroup.POST("/login", h.login)
			authGroup.POST("/logout", h.logout)
			authGroup.GET("/me", h.authRequired(), h.me)
		}

		watchlist := api.Group("/watchlist", h.authRequired())
		{
			watchlist.GET("", h.listWatchlist)
			watchlist.POST("", h.addToWatchlist)
			watchlist.DELETE("", h.removeFromWatchlist)
			watchlist.DELETE("/:id", h.removeFromWatchlistByPath)
			watchlist.PUT("/rating", h.rateEntry)
			watchlist.PUT("/watched", h.setWatched)
		}

		catalog := api.Group("/tmdb")
		{
			catalog.GET("/search", h.searchMovies)
			catalog.GET("/trending", h.trendingMovies)
			catalog.GET("/movie/:id", h.movieDetails)
		}
	}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type addEntryRequest struct {
	TMDBID     int    `json:"tmdbId" binding:"required"`
	Title      string `json:"title"`
	PosterPath string `json:"posterPath"`
	Overview   string `json:"overview"`
}

type removeEntryRequest struct {
	TMDBID int `json:"tmdbId" binding:"required"`
}

type rateEntryRequest struct {
	TMDBID int      `json:"tmdbId" binding:"required"`
	Rating *float64 `json:"rating" binding:"required"`
}

type setWatchedRequest struct {
	TMDBID  int   `json:"tmdbId" binding:"required"`
	Watched *bool `json:"watched" binding:"required"`
}

// UserResponse is the public user summary; it never carries the password hash.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
	}
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeSession(c, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeSession(c, user)
}

// writeSession issues a token for the user and returns it with the summary.
func (h *Handler) writeSession(c *gin.Context, user *domain.User) {
	token, err := h.issuer.Sign(user.ID.Hex(), user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Token: token, User: userToResponse(user)})
}

// logout exists for symmetry; with stateless tokens the client discards its
// cached credential and nothing happens server-side.
func (h *Handler) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// me revalidates a cached session: the token already passed verification,
// so a store miss here means the account vanished after issuance.
func (h *Handler) me(c *gin.Context) {
	identity := identityFromContext(c)

	user, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user)})
}

func (h *Handler) listWatchlist(c *gin.Context) {
	entries, err := h.watchlist.List(c.Request.Context(), identityFromContext(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": entries})
}

func (h *Handler) addToWatchlist(c *gin.Context) {
	var req addEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tmdbId required"})
		return
	}

	entries, err := h.watchlist.Add(c.Request.Context(), identityFromContext(c).UserID, req.TMDBID, req.Title, req.PosterPath, req.Overview)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": entries})
}

func (h *Handler) removeFromWatchlist(c *gin.Context) {
	var req removeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tmdbId required"})
		return
	}
	h.remove(c, req.TMDBID)
}

func (h *Handler) removeFromWatchlistByPath(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return
	}
	h.remove(c, id)
}

func (h *Handler) remove(c *gin.Context, movieID int) {
	entries, err := h.watchlist.Remove(c.Request.Context(), identityFromContext(c).UserID, movieID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": entries})
}

func (h *Handler) rateEntry(c *gin.Context) {
	var req rateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tmdbId and rating required"})
		return
	}

	entries, err := h.watchlist.Rate(c.Request.Context(), identityFromContext(c).UserID, req.TMDBID, *req.Rating)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": entries})
}

func (h *Handler) setWatched(c *gin.Context) {
	var req setWatchedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tmdbId and watched required"})
		return
	}

	entries, err := h.watchlist.SetWatched(c.Request.Context(), identityFromContext(c).UserID, req.TMDBID, *req.Watched)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": entries})
}

func (h *Handler) searchMovies(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		query = c.Query("q")
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter required"})
		return
	}

	list, err := h.catalog.Search(c.Request.Context(), query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) trendingMovies(c *gin.Context) {
	list, err := h.catalog.Trending(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) movieDetails(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return
	}

	movie, err := h.catalog.Movie(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movie)
}

func (h *Handler) healthCheck(c *gin.Context) {
	db := gin.H{"connected": true}
	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			db["connected"] = false
			db["error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": db})
}

// writeError maps service errors onto the response taxonomy: validation and
// conflicts are 400, absent users or entries 404, upstream catalog failures
// relay the payload with 502, anything unrecognized is 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	var upstream *tmdb.UpstreamError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrDuplicateEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrMovieIDRequired),
		errors.Is(err, service.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &upstream):
		c.Data(http.StatusBadGateway, "application/json", upstream.Body)
	default:
		if h.logger != nil {
			h.logger.WithError(err).Error("request failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// bindingMessage turns validator field errors into the messages the client
// renders; unknown binding failures collapse to a generic hint.
func bindingMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			switch fe.Field() {
			case "Username":
				return "username is required"
			case "Email":
				return "a valid email address is required"
			case "Password":
				if fe.Tag() == "min" {
					return "password must be at least 6 characters"
				}
				return "password is required"
			}
		}
	}
	return "invalid request body"
}
