package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/movie-auth-gateway/models"
	"github.com/upb/movie-auth-gateway/repositories"
	"go.uber.org/zap"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	require.NoError(t, repo.Create(ctx, models.NewUser("admin@test.com", "admin123")))

	t.Run("exact email match", func(t *testing.T) {
		user, err := repo.GetByEmail(ctx, "admin@test.com")
		require.NoError(t, err)
		assert.Equal(t, "admin123", user.Password)
	})

	t.Run("lookup is case sensitive", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "Admin@test.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, models.NewUser("admin@test.com", "other"))
		assert.Error(t, err)
	})

	t.Run("returned user is a copy", func(t *testing.T) {
		user, err := repo.GetByEmail(ctx, "admin@test.com")
		require.NoError(t, err)
		user.Password = "changed"

		again, err := repo.GetByEmail(ctx, "admin@test.com")
		require.NoError(t, err)
		assert.Equal(t, "admin123", again.Password)
	})
}

func TestMovieRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMovieRepository()

	inception := models.NewMovie("Inception", "Sci-Fi")
	require.NoError(t, repo.Create(ctx, inception))
	godfather := models.NewMovie("The Godfather", "Crime")
	require.NoError(t, repo.Create(ctx, godfather))

	assert.Equal(t, int64(1), inception.ID)
	assert.Equal(t, int64(2), godfather.ID)

	movies, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Inception", movies[0].Title)

	require.NoError(t, repo.Update(ctx, &models.Movie{ID: 1, Title: "Inception", Genre: "Thriller"}))
	movie, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Thriller", movie.Genre)

	require.NoError(t, repo.Delete(ctx, 1))
	_, err = repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 1), repositories.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &models.Movie{ID: 99, Title: "x"}), repositories.ErrNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMovieRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewMovieRepository()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Create(ctx, models.NewMovie("Movie", "Drama")))
		}()
	}
	wg.Wait()

	movies, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 20)
	for i, movie := range movies {
		assert.Equal(t, int64(i+1), movie.ID)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	require.NoError(t, repositories.Seed(ctx, repos, zap.NewNop()))
	require.NoError(t, repositories.Seed(ctx, repos, zap.NewNop()))

	users, err := repos.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, users)

	movies, err := repos.Movies.List(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, "Inception", movies[0].Title)
	assert.Equal(t, "The Dark Knight", movies[2].Title)

	admin, err := repos.Users.GetByEmail(ctx, "admin@test.com")
	require.NoError(t, err)
	assert.Equal(t, "admin123", admin.Password)
}

func TestSeed_WithPasswordHasher(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hashed passwords", func(t *testing.T) {
		repos := NewRepositories()
		hash := func(p string) (string, error) { return "hashed:" + p, nil }

		require.NoError(t, repositories.Seed(ctx, repos, zap.NewNop(), repositories.WithPasswordHasher(hash)))

		admin, err := repos.Users.GetByEmail(ctx, "admin@test.com")
		require.NoError(t, err)
		assert.Equal(t, "hashed:admin123", admin.Password)
	})

	t.Run("hash failure aborts the seed", func(t *testing.T) {
		repos := NewRepositories()
		hash := func(string) (string, error) { return "", errors.New("entropy exhausted") }

		err := repositories.Seed(ctx, repos, zap.NewNop(), repositories.WithPasswordHasher(hash))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to hash password for admin@test.com")
	})
}
