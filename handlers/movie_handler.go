package handlers

import (
	"context"
	"net/http"

	"github.com/upb/movie-auth-gateway/middleware"
	"github.com/upb/movie-auth-gateway/models"
	"github.com/upb/movie-auth-gateway/services"
	"github.com/upb/movie-auth-gateway/utils"
	"go.uber.org/zap"
)

// MovieService is the movie catalogue used by MovieHandler
type MovieService interface {
	List(ctx context.Context) ([]*models.Movie, error)
	Get(ctx context.Context, id int64) (*models.Movie, error)
	Create(ctx context.Context, input services.MovieInput) (*models.Movie, error)
	Update(ctx context.Context, id int64, input services.MovieInput) (*models.Movie, error)
	Delete(ctx context.Context, id int64) error
}

// MovieRequest is the body of POST and PUT /api/v1/movies
type MovieRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Genre string `json:"genre" validate:"max=100"`
}

// MovieHandler handles movie CRUD requests
type MovieHandler struct {
	movies MovieService
	logger *zap.Logger
}

// NewMovieHandler creates a new MovieHandler
func NewMovieHandler(movies MovieService, logger *zap.Logger) *MovieHandler {
	return &MovieHandler{
		movies: movies,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/movies
func (h *MovieHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	movies, err := h.movies.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, movies)
}

// HandleGet handles GET /api/v1/movies/{id}
func (h *MovieHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	movie, err := h.movies.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, movie)
}

// HandleCreate handles POST /api/v1/movies
func (h *MovieHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMovie(w, r)
	if !ok {
		return
	}

	movie, err := h.movies.Create(r.Context(), services.MovieInput{Title: req.Title, Genre: req.Genre})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("movie created by caller",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Int64("movie_id", movie.ID))

	_ = utils.WriteCreated(w, "/api/v1/movies/"+formatID(movie.ID), movie)
}

// HandleUpdate handles PUT /api/v1/movies/{id}
func (h *MovieHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	req, ok := h.decodeMovie(w, r)
	if !ok {
		return
	}

	if _, err := h.movies.Update(r.Context(), id, services.MovieInput{Title: req.Title, Genre: req.Genre}); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleDelete handles DELETE /api/v1/movies/{id}
func (h *MovieHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if err := h.movies.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func (h *MovieHandler) decodeMovie(w http.ResponseWriter, r *http.Request) (*MovieRequest, bool) {
	var req MovieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return nil, false
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, false
	}
	return &req, true
}
