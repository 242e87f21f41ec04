package repository

import (
	"database/sql"
	"encoding/json"

	"pagesync/pkg/logger"
	"pagesync/store"
)

// DocumentRepository is the durable document store. It owns the persisted
// aggregate exclusively; the sync engine re-reads through it on every
// operation and never caches documents across events.
type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

// FindByID loads the full aggregate. Returns store.ErrNotFound if no row
// matches.
func (r *DocumentRepository) FindByID(id string) (*store.Document, error) {
	row := r.DB.QueryRow(
		`SELECT id, name, owner_id, data, pages, updated_at FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load document %s: %v", id, err)
		return nil, err
	}
	return doc, nil
}

// FindByOwner returns every document whose owner matches. The slice is
// never nil so an empty result serializes as [].
func (r *DocumentRepository) FindByOwner(owner string) ([]store.Document, error) {
	rows, err := r.DB.Query(
		`SELECT id, name, owner_id, data, pages, updated_at FROM documents WHERE owner_id = $1 ORDER BY updated_at DESC`, owner)
	if err != nil {
		logger.Sugar.Errorf("Failed to get documents for owner %s: %v", owner, err)
		return nil, err
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan document row: %v", err)
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// FindAll returns every document in the store, newest first.
func (r *DocumentRepository) FindAll() ([]store.Document, error) {
	rows, err := r.DB.Query(
		`SELECT id, name, owner_id, data, pages, updated_at FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, err
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan document row: %v", err)
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Create inserts a new aggregate and returns it unchanged.
func (r *DocumentRepository) Create(doc *store.Document) (*store.Document, error) {
	pages, err := json.Marshal(doc.Pages)
	if err != nil {
		return nil, err
	}
	_, err = r.DB.Exec(
		`INSERT INTO documents (id, name, owner_id, pages, updated_at) VALUES ($1, $2, $3, $4, NOW())`,
		doc.ID, doc.Name, doc.Owner, pages)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", doc.ID, err)
		return nil, err
	}
	return doc, nil
}

// UpdateName persists a rename without touching the rest of the aggregate.
func (r *DocumentRepository) UpdateName(id, name string) error {
	_, err := r.DB.Exec(
		`UPDATE documents SET name = $1, updated_at = NOW() WHERE id = $2`, name, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to rename document %s: %v", id, err)
	}
	return err
}

// UpdateData persists the opaque data blob without touching the pages.
func (r *DocumentRepository) UpdateData(id string, data json.RawMessage) error {
	_, err := r.DB.Exec(
		`UPDATE documents SET data = $1, updated_at = NOW() WHERE id = $2`, []byte(data), id)
	if err != nil {
		logger.Sugar.Errorf("Failed to save data for document %s: %v", id, err)
	}
	return err
}

// Save writes the whole mutated aggregate back.
func (r *DocumentRepository) Save(doc *store.Document) error {
	pages, err := json.Marshal(doc.Pages)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(
		`UPDATE documents SET name = $1, pages = $2, updated_at = NOW() WHERE id = $3`,
		doc.Name, pages, doc.ID)
	if err != nil {
		logger.Sugar.Errorf("Failed to save document %s: %v", doc.ID, err)
	}
	return err
}

// DeleteByID removes the document entirely. Deleting a missing id is not
// an error.
func (r *DocumentRepository) DeleteByID(id string) error {
	_, err := r.DB.Exec(`DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete document %s: %v", id, err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*store.Document, error) {
	var doc store.Document
	var data []byte
	var pages []byte
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Owner, &data, &pages, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		doc.Data = json.RawMessage(data)
	}
	if len(pages) > 0 {
		if err := json.Unmarshal(pages, &doc.Pages); err != nil {
			return nil, err
		}
	}
	if doc.Pages == nil {
		doc.Pages = []store.Page{}
	}
	return &doc, nil
}
