package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pagesync/internal/document/repository"
	"pagesync/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const findByIDQuery = "SELECT id, name, owner_id, data, pages, updated_at FROM documents WHERE id = \\$1"

// readEvent reads one envelope off the socket with a deadline so tests
// never hang.
func readEvent(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	var msg Message
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	require.NoError(t, json.Unmarshal(p, &msg), "Failed to unmarshal envelope")
	return msg
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	msg, err := NewMessage(event, payload)
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func pagesJSON(t *testing.T, pages []store.Page) []byte {
	t.Helper()
	raw, err := json.Marshal(pages)
	require.NoError(t, err)
	return raw
}

func TestEngineIntegration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	engine := NewEngine(repository.NewDocumentRepository(db), NewRegistry())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The auth middleware is exercised elsewhere; tests pass the
		// identity directly.
		ServeWs(engine, w, r, r.URL.Query().Get("user_id"))
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	docID := "test-doc-1"
	onePage := []store.Page{{PageNumber: 1, Content: store.EmptyContent}}
	twoPages := []store.Page{
		{PageNumber: 1, Content: store.EmptyContent},
		{PageNumber: 2, Content: store.EmptyContent},
	}
	docColumns := []string{"id", "name", "owner_id", "data", "pages", "updated_at"}

	// --- Participant A joins as owner u1: miss then create ---
	mock.ExpectQuery(findByIDQuery).WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(docColumns))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(docID, "Doc-"+docID, "u1", pagesJSON(t, onePage)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conn1, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=u1", nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()

	writeEvent(t, conn1, EventGetDocument, GetDocumentRequest{DocumentID: docID})
	loadMsg := readEvent(t, conn1)
	assert.Equal(t, EventLoadDocument, loadMsg.Event)
	var doc store.Document
	require.NoError(t, json.Unmarshal(loadMsg.Data, &doc))
	assert.Equal(t, "u1", doc.Owner)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].PageNumber)

	// --- Participant B joins as u2 and is denied content ---
	mock.ExpectQuery(findByIDQuery).WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow(docID, "Doc-"+docID, "u1", nil, pagesJSON(t, onePage), time.Now()))

	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?user_id=u2", nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()

	writeEvent(t, conn2, EventGetDocument, GetDocumentRequest{DocumentID: docID})
	deniedMsg := readEvent(t, conn2)
	assert.Equal(t, EventLoadDocument, deniedMsg.Event)
	assert.JSONEq(t, `{"denied":true}`, string(deniedMsg.Data))

	// --- A adds a page; both participants see page-added ---
	mock.ExpectQuery(findByIDQuery).WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow(docID, "Doc-"+docID, "u1", nil, pagesJSON(t, onePage), time.Now()))
	mock.ExpectExec("UPDATE documents SET name = \\$1, pages = \\$2, updated_at = NOW\\(\\) WHERE id = \\$3").
		WithArgs("Doc-"+docID, pagesJSON(t, twoPages), docID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	writeEvent(t, conn1, EventAddPage, struct{}{})
	for _, conn := range []*websocket.Conn{conn1, conn2} {
		msg := readEvent(t, conn)
		assert.Equal(t, EventPageAdded, msg.Event)
		var added PageAdded
		require.NoError(t, json.Unmarshal(msg.Data, &added))
		assert.Equal(t, 2, added.PageNumber)
		assert.Len(t, added.Pages, 2)
	}

	// --- A deletes page 1; the survivor is renumbered to 1 ---
	mock.ExpectQuery(findByIDQuery).WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow(docID, "Doc-"+docID, "u1", nil, pagesJSON(t, twoPages), time.Now()))
	mock.ExpectExec("UPDATE documents SET name = \\$1, pages = \\$2, updated_at = NOW\\(\\) WHERE id = \\$3").
		WithArgs("Doc-"+docID, pagesJSON(t, onePage), docID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	writeEvent(t, conn1, EventDeletePage, DeletePageRequest{PageNumber: 1})
	for _, conn := range []*websocket.Conn{conn1, conn2} {
		msg := readEvent(t, conn)
		assert.Equal(t, EventPageDeleted, msg.Event)
		var deleted PageDeleted
		require.NoError(t, json.Unmarshal(msg.Data, &deleted))
		assert.Equal(t, 1, deleted.DeletedPage)
		require.Len(t, deleted.Pages, 1)
		assert.Equal(t, 1, deleted.Pages[0].PageNumber)
	}

	// --- A relays a delta; only B receives it ---
	delta := `{"ops":[{"retain":3},{"insert":"!"}]}`
	require.NoError(t, conn1.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"send-changes","data":`+delta+`}`)))

	changeMsg := readEvent(t, conn2)
	assert.Equal(t, EventReceiveChanges, changeMsg.Event)
	assert.JSONEq(t, delta, string(changeMsg.Data))

	// --- A loads a page that does not exist and gets empty content;
	// this also proves the delta was never echoed back to A, since the
	// page-loaded reply is the next message on A's socket ---
	mock.ExpectQuery(findByIDQuery).WithArgs(docID).
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow(docID, "Doc-"+docID, "u1", nil, pagesJSON(t, onePage), time.Now()))

	writeEvent(t, conn1, EventLoadPage, LoadPageRequest{PageNumber: 5})
	loadedMsg := readEvent(t, conn1)
	assert.Equal(t, EventPageLoaded, loadedMsg.Event)
	var loaded PageLoaded
	require.NoError(t, json.Unmarshal(loadedMsg.Data, &loaded))
	assert.Equal(t, 5, loaded.PageNumber)
	assert.JSONEq(t, `{}`, string(loaded.Content))

	assert.NoError(t, mock.ExpectationsWereMet())
}
