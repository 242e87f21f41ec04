package repository

import (
	"encoding/json"
	"testing"
	"time"

	"pagesync/pkg/logger"
	"pagesync/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init()
}

func docColumns() []string {
	return []string{"id", "name", "owner_id", "data", "pages", "updated_at"}
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, owner_id, data, pages, updated_at FROM documents WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(docColumns()))

	repo := NewDocumentRepository(db)
	doc, err := repo.FindByID("missing")

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDScansAggregate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pages := `[{"pageNumber":1,"content":{"text":"hello"}},{"pageNumber":2,"content":{}}]`
	mock.ExpectQuery("SELECT id, name, owner_id, data, pages, updated_at FROM documents WHERE id = \\$1").
		WithArgs("doc1").
		WillReturnRows(sqlmock.NewRows(docColumns()).
			AddRow("doc1", "Doc-doc1", "u1", nil, []byte(pages), time.Now()))

	repo := NewDocumentRepository(db)
	doc, err := repo.FindByID("doc1")

	require.NoError(t, err)
	assert.Equal(t, "Doc-doc1", doc.Name)
	assert.Equal(t, "u1", doc.Owner)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 1, doc.Pages[0].PageNumber)
	assert.JSONEq(t, `{"text":"hello"}`, string(doc.Pages[0].Content))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByOwnerEmptyResultIsNotNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, owner_id, data, pages, updated_at FROM documents WHERE owner_id = \\$1").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(docColumns()))

	repo := NewDocumentRepository(db)
	docs, err := repo.FindByOwner("nobody")

	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePersistsInitialPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	doc := store.NewDocument("doc1", "u1")
	pages, _ := json.Marshal(doc.Pages)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc1", "Doc-doc1", "u1", pages).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewDocumentRepository(db)
	created, err := repo.Create(doc)

	require.NoError(t, err)
	assert.Equal(t, doc, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWritesRenumberedPages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	doc := store.NewDocument("doc1", "u1")
	doc.AppendPage()
	require.True(t, doc.RemovePage(1))
	pages, _ := json.Marshal(doc.Pages)

	mock.ExpectExec("UPDATE documents SET name = \\$1, pages = \\$2, updated_at = NOW\\(\\) WHERE id = \\$3").
		WithArgs("Doc-doc1", pages, "doc1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewDocumentRepository(db)
	require.NoError(t, repo.Save(doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDataLeavesPagesAlone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	blob := json.RawMessage(`{"cursor":12}`)
	mock.ExpectExec("UPDATE documents SET data = \\$1, updated_at = NOW\\(\\) WHERE id = \\$2").
		WithArgs([]byte(blob), "doc1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewDocumentRepository(db)
	require.NoError(t, repo.UpdateData("doc1", blob))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM documents WHERE id = \\$1").
		WithArgs("doc1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewDocumentRepository(db)
	require.NoError(t, repo.DeleteByID("doc1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
