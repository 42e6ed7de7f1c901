package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWebhookNotifier_DefaultJSONPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)

		var stats Stats
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&stats))
		assert.Equal(t, StatusSuccess, stats.Status)
		assert.Equal(t, "mysql", stats.Engine)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", "", nil)
	err := n.Notify(context.Background(), Stats{Status: StatusSuccess, Engine: "mysql"})
	assert.NoError(t, err)
}

func TestWebhookNotifier_CustomMethodAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "PUT", "", map[string]string{"Authorization": "Bearer tok"})
	assert.NoError(t, n.Notify(context.Background(), Stats{}))
}

func TestWebhookNotifier_Template(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received = body.Message
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", `{"message": "{{.Engine}}/{{.Target}} in {{.FormattedDuration}}"}`, nil)
	err := n.Notify(context.Background(), Stats{Engine: "redis", Target: "cache", Duration: 3 * time.Second})
	assert.NoError(t, err)
	assert.Equal(t, "redis/cache in 3s", received)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", "", nil)
	assert.Error(t, n.Notify(context.Background(), Stats{}))
}

func TestMultiNotifier_ContinuesPastFailures(t *testing.T) {
	var calls int
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	m := &MultiNotifier{Notifiers: []Notifier{
		NewWebhookNotifier(bad.URL, "", "", nil),
		NewWebhookNotifier(ok.URL, "", "", nil),
	}}

	assert.NoError(t, m.Notify(context.Background(), Stats{}))
	assert.Equal(t, 1, calls)
}
