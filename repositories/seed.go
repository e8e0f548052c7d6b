package repositories

import (
	"context"
	"fmt"

	"github.com/upb/movie-auth-gateway/models"
	"go.uber.org/zap"
)

// SeedUsers are the accounts created when the user store is empty
var SeedUsers = []struct {
	Email    string
	Password string
}{
	{Email: "admin@test.com", Password: "admin123"},
	{Email: "user@example.com", Password: "user123"},
}

// SeedMovies are the movies created when the movie store is empty
var SeedMovies = []struct {
	Title string
	Genre string
}{
	{Title: "Inception", Genre: "Sci-Fi"},
	{Title: "The Godfather", Genre: "Crime"},
	{Title: "The Dark Knight", Genre: "Action"},
}

// SeedOption configures Seed
type SeedOption func(*seedOptions)

type seedOptions struct {
	hashPassword func(string) (string, error)
}

// WithPasswordHasher stores seeded passwords through hash instead of as plaintext
func WithPasswordHasher(hash func(string) (string, error)) SeedOption {
	return func(o *seedOptions) {
		o.hashPassword = hash
	}
}

// Seed fills empty user and movie stores with the default data in one transaction.
// Stores that already hold records are left untouched.
func Seed(ctx context.Context, repos *Repositories, logger *zap.Logger, opts ...SeedOption) error {
	options := seedOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return repos.Transactions.InTransaction(ctx, func(ctx context.Context, _ Transaction) error {
		users, err := repos.Users.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		if users == 0 {
			for _, seed := range SeedUsers {
				password := seed.Password
				if options.hashPassword != nil {
					if password, err = options.hashPassword(password); err != nil {
						return fmt.Errorf("failed to hash password for %s: %w", seed.Email, err)
					}
				}
				if err := repos.Users.Create(ctx, models.NewUser(seed.Email, password)); err != nil {
					return fmt.Errorf("failed to seed user %s: %w", seed.Email, err)
				}
			}
			logger.Info("seeded users", zap.Int("count", len(SeedUsers)))
		}

		movies, err := repos.Movies.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count movies: %w", err)
		}
		if movies == 0 {
			for _, seed := range SeedMovies {
				if err := repos.Movies.Create(ctx, models.NewMovie(seed.Title, seed.Genre)); err != nil {
					return fmt.Errorf("failed to seed movie %s: %w", seed.Title, err)
				}
			}
			logger.Info("seeded movies", zap.Int("count", len(SeedMovies)))
		}

		return nil
	})
}
