package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorlink/chatkit/internal/models"
)

// newTestClient spins up a canned-response server and a client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token")
}

func TestConversationsRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]models.Conversation{{ID: "c1"}})
	})

	convs, err := c.Conversations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "/conversations", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
}

func TestMessagesPageQuery(t *testing.T) {
	var gotPath, gotPage string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPage = r.URL.Query().Get("page")
		json.NewEncoder(w).Encode(MessagesPage{
			Messages: []models.Message{{ID: "m1", Text: "hi"}},
			HasMore:  true,
			Total:    42,
		})
	})

	page, err := c.Messages(context.Background(), "c1", 3)

	require.NoError(t, err)
	assert.Equal(t, "/conversations/c1/messages", gotPath)
	assert.Equal(t, "3", gotPage)
	assert.True(t, page.HasMore)
	assert.Equal(t, 42, page.Total)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m1", page.Messages[0].ID)
}

func TestOpenConversationPostsRecipient(t *testing.T) {
	var gotMethod string
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(models.Conversation{ID: "c9"})
	})

	conv, err := c.OpenConversation(context.Background(), "u2")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, map[string]string{"recipientId": "u2"}, gotBody)
	assert.Equal(t, "c9", conv.ID)
}

func TestSendMessagePostsText(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(models.Message{ID: "m1", Text: "hello"})
	})

	msg, err := c.SendMessage(context.Background(), "c1", "hello")

	require.NoError(t, err)
	assert.Equal(t, "/conversations/c1/messages", gotPath)
	assert.Equal(t, map[string]string{"text": "hello"}, gotBody)
	assert.Equal(t, "m1", msg.ID)
}

func TestMarkReadTolerantOfEmptyBody(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.MarkRead(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, "/conversations/c1/read", gotPath)
}

func TestSessionEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions/s1":
			json.NewEncoder(w).Encode(models.Session{ID: "s1", Status: models.SessionScheduled})
		case "/sessions/s1/chat":
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode([]models.Message{{ID: "m1"}})
			case http.MethodPost:
				json.NewEncoder(w).Encode(models.Message{ID: "m2", Text: "posted"})
			}
		default:
			http.NotFound(w, r)
		}
	})

	sess, err := c.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, sess.Status)

	history, err := c.SessionHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	msg, err := c.PostSessionMessage(context.Background(), "s1", "posted")
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)
}

func TestErrorEnvelopeSurfacesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(apiError{Message: "not a participant"})
	})

	_, err := c.Conversations(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a participant")
}

func TestErrorWithoutEnvelopeIncludesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := c.Contacts(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}
