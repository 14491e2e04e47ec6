package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"

	"doc-sync/errors"
)

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repo := NewDocumentRepository(badgerDB, blugeWriter, log)
	owner := uuid.New()

	created, err := repo.CreateDocument(ctx, "design notes", owner)
	req.NoError(err)
	req.Equal(owner, created.OwnerID)
	req.Empty(created.Content)

	fetched, err := repo.GetDocument(ctx, created.ID)
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.Equal("design notes", fetched.Name)
}

func TestDocumentRepository_GetUnknown(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repo := NewDocumentRepository(badgerDB, blugeWriter, log)

	_, err = repo.GetDocument(ctx, uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestDocumentRepository_UpdateContent_LastValueWins(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repo := NewDocumentRepository(badgerDB, blugeWriter, log)
	created, err := repo.CreateDocument(ctx, "draft", uuid.New())
	req.NoError(err)

	req.NoError(repo.UpdateContent(ctx, created.ID, "first version"))
	req.NoError(repo.UpdateContent(ctx, created.ID, "second version"))

	fetched, err := repo.GetDocument(ctx, created.ID)
	req.NoError(err)
	req.Equal("second version", fetched.Content)
	req.True(fetched.UpdatedAt.After(created.UpdatedAt) || fetched.UpdatedAt.Equal(created.UpdatedAt))

	req.ErrorIs(repo.UpdateContent(ctx, uuid.New(), "orphan"), errors.ErrNotFound)
}

func TestDocumentRepository_SearchByContent(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repo := NewDocumentRepository(badgerDB, blugeWriter, log)
	owner := uuid.New()

	first, err := repo.CreateDocument(ctx, "minutes", owner)
	req.NoError(err)
	req.NoError(repo.UpdateContent(ctx, first.ID, "the migration to PostgreSQL is planned for march"))

	second, err := repo.CreateDocument(ctx, "groceries", owner)
	req.NoError(err)
	req.NoError(repo.UpdateContent(ctx, second.ID, "eggs milk flour"))

	results, total, err := repo.SearchDocuments(ctx, "PostgreSQL", 10)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(results, 1)
	req.Equal(first.ID, results[0].ID)
}

func TestDocumentRepository_ListDocuments(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repo := NewDocumentRepository(badgerDB, blugeWriter, log)
	owner := uuid.New()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err = repo.CreateDocument(ctx, name, owner)
		req.NoError(err)
	}

	docs, err := repo.ListDocuments(ctx)
	req.NoError(err)
	req.Len(docs, 3)
}
