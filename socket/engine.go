package socket

import (
	"encoding/json"
	"errors"
	"sync"

	"pagesync/pkg/logger"
	"pagesync/store"
)

// DocumentStore is the narrow slice of the durable store the engine needs.
// *repository.DocumentRepository satisfies it.
type DocumentStore interface {
	FindByID(id string) (*store.Document, error)
	FindByOwner(owner string) ([]store.Document, error)
	Create(doc *store.Document) (*store.Document, error)
	UpdateName(id, name string) error
	UpdateData(id string, data json.RawMessage) error
	Save(doc *store.Document) error
	DeleteByID(id string) error
}

// Engine drives the per-document session state machine: join, page CRUD,
// delta relay, rename, teardown. It holds no document state between events;
// every mutation re-reads the store so it never works from a stale copy.
//
// Page mutations are read-modify-write sequences, so the engine serializes
// them with one mutex per document id. Deltas are relayed last-write-wins;
// concurrent edits to the same page are not reconciled.
type Engine struct {
	store    DocumentStore
	registry *Registry

	mu       sync.Mutex
	sessions map[*Client]string
	docLocks map[string]*sync.Mutex
}

func NewEngine(docs DocumentStore, registry *Registry) *Engine {
	return &Engine{
		store:    docs,
		registry: registry,
		sessions: make(map[*Client]string),
		docLocks: make(map[string]*sync.Mutex),
	}
}

// Handle dispatches one inbound event. The returned error is for operators
// and tests only; it is never delivered to the participant.
func (e *Engine) Handle(c *Client, msg Message) error {
	switch msg.Event {
	case EventFindAll:
		return e.findAll(c)
	case EventGetDocument:
		var req GetDocumentRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return e.getDocument(c, req.DocumentID)
	case EventRenameDocument:
		var req RenameRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return e.rename(c, req.Name)
	case EventSendChanges:
		return e.sendChanges(c, msg.Data)
	case EventSaveDocument:
		var req SaveDocumentRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return e.saveDocument(c, req.Data)
	case EventAddPage:
		return e.addPage(c)
	case EventDeletePage:
		var req DeletePageRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return e.deletePage(c, req.PageNumber)
	case EventSavePage:
		var req SavePageRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return e.savePage(c, req.PageNumber, req.Content)
	case EventLoadPage:
		var req LoadPageRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return e.loadPage(c, req.PageNumber)
	case EventDeleteDocument:
		var req DeleteDocumentRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return err
		}
		return e.store.DeleteByID(req.DocumentID)
	default:
		logger.Sugar.Warnf("Unknown event %q from client %s", msg.Event, c.ID)
		return nil
	}
}

// Disconnect removes the participant from every room it joined. In-flight
// persistence is not cancelled; undeliverable results are discarded.
func (e *Engine) Disconnect(c *Client) {
	e.registry.LeaveAll(c)
	e.mu.Lock()
	delete(e.sessions, c)
	e.mu.Unlock()
}

// findAll lists the requester's own documents. An empty owner id yields an
// empty sequence, never an error.
func (e *Engine) findAll(c *Client) error {
	docs := []store.Document{}
	if c.UserID != "" {
		var err error
		docs, err = e.store.FindByOwner(c.UserID)
		if err != nil {
			return err
		}
	}
	e.registry.EmitTo(c, EventAllDocuments, docs)
	return nil
}

// getDocument resolves-or-creates the document, joins the requester to its
// room, and delivers either the full document or the ownership-denied
// sentinel. This join-time check is the only ownership enforcement in the
// protocol; later mutations do not re-validate the owner.
func (e *Engine) getDocument(c *Client, docID string) error {
	if docID == "" {
		return nil
	}

	unlock := e.lockDocument(docID)
	doc, err := e.store.FindByID(docID)
	if errors.Is(err, store.ErrNotFound) {
		doc, err = e.store.Create(store.NewDocument(docID, c.UserID))
	}
	unlock()
	if err != nil {
		return err
	}

	e.registry.Join(docID, c)
	e.mu.Lock()
	e.sessions[c] = docID
	e.mu.Unlock()

	if doc.Owner == c.UserID {
		e.registry.EmitTo(c, EventLoadDocument, doc)
	} else {
		e.registry.EmitTo(c, EventLoadDocument, DeniedDocument{Denied: true})
	}
	return nil
}

// rename persists the new name. No broadcast: other participants observe it
// only through their own subsequent loads.
func (e *Engine) rename(c *Client, name string) error {
	docID, ok := e.session(c)
	if !ok {
		return nil
	}
	return e.store.UpdateName(docID, name)
}

// sendChanges relays the opaque delta to everyone else in the room.
// At-most-once, best-effort; the sender never gets its own delta back and
// nothing is persisted.
func (e *Engine) sendChanges(c *Client, delta json.RawMessage) error {
	docID, ok := e.session(c)
	if !ok {
		return nil
	}
	e.registry.Broadcast(docID, c, EventReceiveChanges, delta)
	return nil
}

// saveDocument persists the opaque data blob onto the document.
func (e *Engine) saveDocument(c *Client, data json.RawMessage) error {
	docID, ok := e.session(c)
	if !ok {
		return nil
	}
	return e.store.UpdateData(docID, data)
}

// addPage appends an empty page numbered count+1 and fans the updated page
// list out to the requester and the rest of the room.
func (e *Engine) addPage(c *Client) error {
	docID, ok := e.session(c)
	if !ok {
		return nil
	}

	unlock := e.lockDocument(docID)
	defer unlock()

	doc, err := e.store.FindByID(docID)
	if err != nil {
		return ignoreNotFound(err)
	}
	pageNumber := doc.AppendPage()
	if err := e.store.Save(doc); err != nil {
		return err
	}

	payload := PageAdded{PageNumber: pageNumber, Pages: doc.Pages}
	e.registry.EmitTo(c, EventPageAdded, payload)
	e.registry.Broadcast(docID, c, EventPageAdded, payload)
	return nil
}

// deletePage removes the matching page, renumbers the rest densely from 1,
// and fans the result out. A document with a single page is left untouched
// and nothing is emitted.
func (e *Engine) deletePage(c *Client, pageNumber int) error {
	docID, ok := e.session(c)
	if !ok {
		return nil
	}

	unlock := e.lockDocument(docID)
	defer unlock()

	doc, err := e.store.FindByID(docID)
	if err != nil {
		return ignoreNotFound(err)
	}
	if !doc.RemovePage(pageNumber) {
		return nil
	}
	if err := e.store.Save(doc); err != nil {
		return err
	}

	payload := PageDeleted{DeletedPage: pageNumber, Pages: doc.Pages}
	e.registry.EmitTo(c, EventPageDeleted, payload)
	e.registry.Broadcast(docID, c, EventPageDeleted, payload)
	return nil
}

// savePage replaces the content of the matching page. No broadcast; the
// caller already holds the content locally.
func (e *Engine) savePage(c *Client, pageNumber int, content json.RawMessage) error {
	docID, ok := e.session(c)
	if !ok {
		return nil
	}

	unlock := e.lockDocument(docID)
	defer unlock()

	doc, err := e.store.FindByID(docID)
	if err != nil {
		return ignoreNotFound(err)
	}
	page := doc.Page(pageNumber)
	if page == nil {
		return nil
	}
	page.Content = content
	return e.store.Save(doc)
}

// loadPage unicasts the page content to the requester, defaulting to an
// empty payload when the page does not exist.
func (e *Engine) loadPage(c *Client, pageNumber int) error {
	docID, ok := e.session(c)
	if !ok {
		return nil
	}

	doc, err := e.store.FindByID(docID)
	if err != nil {
		return ignoreNotFound(err)
	}
	content := store.EmptyContent
	if page := doc.Page(pageNumber); page != nil {
		content = page.Content
	}
	e.registry.EmitTo(c, EventPageLoaded, PageLoaded{PageNumber: pageNumber, Content: content})
	return nil
}

// session returns the document id the client joined, if any. Events other
// than find-all, get-document, and delete-document are ignored before join.
func (e *Engine) session(c *Client) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	docID, ok := e.sessions[c]
	return docID, ok
}

// lockDocument serializes read-modify-write sequences for one document id
// so two concurrent page mutations cannot both work from the same stale
// read. The original relay allowed that lost-update race.
func (e *Engine) lockDocument(docID string) func() {
	e.mu.Lock()
	l, ok := e.docLocks[docID]
	if !ok {
		l = &sync.Mutex{}
		e.docLocks[docID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ignoreNotFound degrades a missing document to a silent no-op.
func ignoreNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
