package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	publishingservice "letterbox/contexts/newsletter/publishing-service"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	newsletterhttp "letterbox/contexts/newsletter/publishing-service/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type discardSender struct {
	mu    sync.Mutex
	count int
}

func (d *discardSender) SendEmail(context.Context, entities.Email) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	auth, err := NewAuthenticator(testSecret)
	require.NoError(t, err)
	module := publishingservice.NewInMemoryModule([]entities.Subscriber{
		{SubscriberID: "sub-a", Email: "a@x.com", Status: entities.SubscriberStatusConfirmed, SubscriptionToken: "tok-a"},
	}, &discardSender{}, nil, nil)
	return New(module, auth, nil, ":0")
}

func bearer(t *testing.T, ownerID string) string {
	t.Helper()
	auth, err := NewAuthenticator(testSecret)
	require.NoError(t, err)
	token, err := auth.IssueToken(ownerID, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func publishRequest(t *testing.T, key string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/newsletters", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "owner-1"))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

const validBody = `{"title":"Spring edition","text_content":"plain","html_content":"<p>html</p>"}`

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health_check", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPublishRequiresBearerToken(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/newsletters", bytes.NewReader([]byte(validBody)))
	req.Header.Set("Idempotency-Key", "key-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPublishRejectsTokenSignedWithOtherSecret(t *testing.T) {
	server := newTestServer(t)
	other, err := NewAuthenticator("other-secret")
	require.NoError(t, err)
	token, err := other.IssueToken("owner-1", time.Hour, time.Now())
	require.NoError(t, err)

	req := publishRequest(t, "key-1", validBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPublishRequiresIdempotencyKey(t *testing.T) {
	server := newTestServer(t)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, publishRequest(t, "", validBody))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}

	var payload newsletterhttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "idempotency_key_required", payload.Code)
}

func TestPublishRejectsMalformedKeyAndBody(t *testing.T) {
	server := newTestServer(t)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, publishRequest(t, "has spaces", validBody))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, publishRequest(t, "key-1", `{"title":`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, publishRequest(t, "key-1", `{"title":"only"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPublishReplaysIdenticalBytes(t *testing.T) {
	server := newTestServer(t)

	first := httptest.NewRecorder()
	server.mux.ServeHTTP(first, publishRequest(t, "key-1", validBody))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := httptest.NewRecorder()
	server.mux.ServeHTTP(second, publishRequest(t, "key-1", validBody))
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, first.Header().Values("Content-Type"), second.Header().Values("Content-Type"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))

	var payload newsletterhttp.PublishIssueResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &payload))
	assert.True(t, payload.Success)

	status := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/newsletters/"+payload.IssueID, nil)
	req.Header.Set("Authorization", bearer(t, "owner-1"))
	server.mux.ServeHTTP(status, req)
	require.Equal(t, http.StatusOK, status.Code)

	var issue newsletterhttp.GetIssueResponse
	require.NoError(t, json.Unmarshal(status.Body.Bytes(), &issue))
	assert.Equal(t, "Spring edition", issue.Issue.Title)
	assert.Equal(t, 1, issue.PendingDeliveries)
}

func TestGetIssueNotFound(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/newsletters/missing", nil)
	req.Header.Set("Authorization", bearer(t, "owner-1"))

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWriteSavedResponseKeepsRepeatedHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	writeSavedResponse(rr, entities.SavedResponse{
		StatusCode: http.StatusAccepted,
		Headers: []entities.HeaderPair{
			{Name: "Set-Cookie", Value: []byte("a=1")},
			{Name: "Set-Cookie", Value: []byte("b=2")},
		},
		Body: []byte{0xff, 0xfe},
	})

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"a=1", "b=2"}, rr.Header().Values("Set-Cookie"))
	assert.Equal(t, []byte{0xff, 0xfe}, rr.Body.Bytes())
}
