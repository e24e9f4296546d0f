package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() entities.Email {
	return entities.Email{
		Recipient:   "reader@example.com",
		Subject:     "Spring edition",
		HTMLContent: "<p>hi</p>",
		TextContent: "hi",
	}
}

func TestSendEmailPostsExpectedRequest(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email", r.URL.Path)
		assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL:            server.URL + "/",
		Sender:             "editor@example.com",
		AuthorizationToken: "server-token",
	})
	require.NoError(t, err)

	require.NoError(t, client.SendEmail(context.Background(), testMessage()))
	assert.Equal(t, map[string]string{
		"From":     "editor@example.com",
		"To":       "reader@example.com",
		"Subject":  "Spring edition",
		"HtmlBody": "<p>hi</p>",
		"TextBody": "hi",
	}, got)
}

func TestSendEmailFailsOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, Sender: "editor@example.com"})
	require.NoError(t, err)

	err = client.SendEmail(context.Background(), testMessage())
	require.ErrorIs(t, err, domainerrors.ErrEmailDeliveryFailed)
}

func TestSendEmailTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		select {
		case <-release:
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(Config{
		BaseURL: server.URL,
		Sender:  "editor@example.com",
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	err = client.SendEmail(context.Background(), testMessage())
	require.ErrorIs(t, err, domainerrors.ErrEmailDeliveryFailed)
}

func TestNewClientRejectsInvalidSender(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://api.postmarkapp.com", Sender: "not-an-email"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidEmailAddress)
}
