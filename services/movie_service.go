package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/upb/movie-auth-gateway/models"
	"github.com/upb/movie-auth-gateway/repositories"
	"go.uber.org/zap"
)

// MovieInput carries the client-editable fields of a movie
type MovieInput struct {
	Title string
	Genre string
}

// MovieService implements movie catalogue operations for authenticated callers.
type MovieService struct {
	movies repositories.MovieRepository
	txMgr  repositories.TransactionManager
	logger *zap.Logger
}

// NewMovieService creates a new MovieService
func NewMovieService(movies repositories.MovieRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *MovieService {
	return &MovieService{
		movies: movies,
		txMgr:  txMgr,
		logger: logger,
	}
}

// List returns every movie ordered by ID
func (s *MovieService) List(ctx context.Context) ([]*models.Movie, error) {
	movies, err := s.movies.List(ctx)
	if err != nil {
		return nil, WrapInternal("failed to list movies", err)
	}
	return movies, nil
}

// Get returns one movie
func (s *MovieService) Get(ctx context.Context, id int64) (*models.Movie, error) {
	movie, err := s.movies.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepositoryError(err, id)
	}
	return movie, nil
}

// Create stores a new movie
func (s *MovieService) Create(ctx context.Context, input MovieInput) (*models.Movie, error) {
	input, err := normalizeMovieInput(input)
	if err != nil {
		return nil, err
	}

	movie := models.NewMovie(input.Title, input.Genre)
	if err := s.movies.Create(ctx, movie); err != nil {
		return nil, WrapInternal("failed to create movie", err)
	}

	s.logger.Info("movie created", zap.Int64("movie_id", movie.ID))
	return movie, nil
}

// Update replaces title and genre of an existing movie
func (s *MovieService) Update(ctx context.Context, id int64, input MovieInput) (*models.Movie, error) {
	input, err := normalizeMovieInput(input)
	if err != nil {
		return nil, err
	}

	movie, err := WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Movie, error) {
		movie, err := s.movies.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		movie.Title = input.Title
		movie.Genre = input.Genre
		movie.UpdatedAt = time.Now()
		if err := s.movies.Update(ctx, movie); err != nil {
			return nil, err
		}
		return movie, nil
	})
	if err != nil {
		return nil, s.mapRepositoryError(err, id)
	}

	s.logger.Info("movie updated", zap.Int64("movie_id", id))
	return movie, nil
}

// Delete removes a movie
func (s *MovieService) Delete(ctx context.Context, id int64) error {
	var title string
	err := WithTransaction(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) error {
		movie, err := s.movies.GetByID(ctx, id)
		if err != nil {
			return err
		}
		title = movie.Title
		return s.movies.Delete(ctx, id)
	})
	if err != nil {
		return s.mapRepositoryError(err, id)
	}

	s.logger.Info("movie deleted", zap.Int64("movie_id", id), zap.String("title", title))
	return nil
}

func (s *MovieService) mapRepositoryError(err error, id int64) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return NewDomainError(ErrorTypeNotFound, "movie not found", err).WithDetail("id", id)
	}
	return WrapInternal("movie store failure", err)
}

func normalizeMovieInput(input MovieInput) (MovieInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Genre = strings.TrimSpace(input.Genre)
	if input.Title == "" {
		return input, NewDomainError(ErrorTypeValidation, "title is required", nil).WithDetail("title", "required")
	}
	return input, nil
}
