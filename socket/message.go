package socket

import (
	"encoding/json"

	"pagesync/store"
)

// Inbound event names (participant -> engine).
const (
	EventFindAll        = "find-all"
	EventGetDocument    = "get-document"
	EventRenameDocument = "rename-document"
	EventSendChanges    = "send-changes"
	EventSaveDocument   = "save-document"
	EventAddPage        = "add-page"
	EventDeletePage     = "delete-page"
	EventSavePage       = "save-page"
	EventLoadPage       = "load-page"
	EventDeleteDocument = "delete-document"
)

// Outbound event names (engine -> participant).
const (
	EventAllDocuments   = "all-documents"
	EventLoadDocument   = "load-document"
	EventReceiveChanges = "receive-changes"
	EventPageAdded      = "page-added"
	EventPageDeleted    = "page-deleted"
	EventPageLoaded     = "page-loaded"
)

// Message is the wire envelope in both directions. Data is left opaque
// until the handler for the named event decodes it.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewMessage(event string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: data}, nil
}

// Inbound payloads. OwnerID fields are overwritten with the connection's
// authenticated identity before use.

type FindAllRequest struct {
	OwnerID string `json:"ownerId"`
}

type GetDocumentRequest struct {
	DocumentID string `json:"documentId"`
	OwnerID    string `json:"ownerId"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

type SaveDocumentRequest struct {
	Data json.RawMessage `json:"data"`
}

type DeletePageRequest struct {
	PageNumber int `json:"pageNumber"`
}

type SavePageRequest struct {
	PageNumber int             `json:"pageNumber"`
	Content    json.RawMessage `json:"content"`
}

type LoadPageRequest struct {
	PageNumber int `json:"pageNumber"`
}

type DeleteDocumentRequest struct {
	DocumentID string `json:"documentId"`
}

// Outbound payloads.

// DeniedDocument is emitted in place of the document when the joining
// participant is not the recorded owner. It withholds all content and is
// the only error-like signal in the protocol.
type DeniedDocument struct {
	Denied bool `json:"denied"`
}

type PageAdded struct {
	PageNumber int          `json:"pageNumber"`
	Pages      []store.Page `json:"pages"`
}

type PageDeleted struct {
	DeletedPage int          `json:"deletedPage"`
	Pages       []store.Page `json:"pages"`
}

type PageLoaded struct {
	PageNumber int             `json:"pageNumber"`
	Content    json.RawMessage `json:"content"`
}
