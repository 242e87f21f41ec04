package service

import (
	"pagesync/internal/document/repository"
	"pagesync/store"
)

type DocumentService struct {
	Repo *repository.DocumentRepository
}

func NewDocumentService(repo *repository.DocumentRepository) *DocumentService {
	return &DocumentService{Repo: repo}
}

// ListDocuments returns every stored document in full, pages included,
// newest first.
func (s *DocumentService) ListDocuments() ([]store.Document, error) {
	return s.Repo.FindAll()
}
