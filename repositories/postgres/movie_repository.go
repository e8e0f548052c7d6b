package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/movie-auth-gateway/models"
	"github.com/upb/movie-auth-gateway/repositories"
	"go.uber.org/zap"
)

// MovieRepository implements the repositories.MovieRepository interface
type MovieRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMovieRepository creates a new movie repository
func NewMovieRepository(db *DB, logger *zap.Logger) repositories.MovieRepository {
	return &MovieRepository{
		db:     db,
		logger: logger,
	}
}

// List retrieves all movies
func (r *MovieRepository) List(ctx context.Context) ([]*models.Movie, error) {
	query := `
		SELECT id, title, genre, created_at, updated_at
		FROM movies
		ORDER BY id
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	movies := make([]*models.Movie, 0)
	for rows.Next() {
		movie := &models.Movie{}
		err := rows.Scan(
			&movie.ID,
			&movie.Title,
			&movie.Genre,
			&movie.CreatedAt,
			&movie.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, movie)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movie rows: %w", err)
	}

	return movies, nil
}

// GetByID retrieves a movie by ID
func (r *MovieRepository) GetByID(ctx context.Context, id int64) (*models.Movie, error) {
	query := `
		SELECT id, title, genre, created_at, updated_at
		FROM movies
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	movie := &models.Movie{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&movie.ID,
		&movie.Title,
		&movie.Genre,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}

	return movie, nil
}

// Create creates a new movie and sets its generated ID
func (r *MovieRepository) Create(ctx context.Context, movie *models.Movie) error {
	query := `
		INSERT INTO movies (title, genre, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		movie.Title,
		movie.Genre,
		movie.CreatedAt,
		movie.UpdatedAt,
	).Scan(&movie.ID)

	if err != nil {
		return fmt.Errorf("failed to create movie: %w", err)
	}

	r.logger.Debug("movie created", zap.Int64("id", movie.ID))
	return nil
}

// Update updates a movie
func (r *MovieRepository) Update(ctx context.Context, movie *models.Movie) error {
	query := `
		UPDATE movies
		SET title = $2,
		    genre = $3,
		    updated_at = $4
		WHERE id = $1
	`

	movie.UpdatedAt = time.Now()
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		movie.ID,
		movie.Title,
		movie.Genre,
		movie.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update movie: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("movie updated", zap.Int64("id", movie.ID))
	return nil
}

// Delete deletes a movie
func (r *MovieRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM movies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("movie deleted", zap.Int64("id", id))
	return nil
}

// Count returns the number of movies
func (r *MovieRepository) Count(ctx context.Context) (int, error) {
	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return count, nil
}
