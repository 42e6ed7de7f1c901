package deliver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedUpload struct {
	content  string
	filename string
	size     int64
}

func newWebhookServer(t *testing.T, uploads *[]receivedUpload, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(64<<20))

		var payload struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("payload_json")), &payload))

		file, header, err := r.FormFile("files[0]")
		require.NoError(t, err)
		defer file.Close()
		n, err := io.Copy(io.Discard, file)
		require.NoError(t, err)

		*uploads = append(*uploads, receivedUpload{
			content:  payload.Content,
			filename: header.Filename,
			size:     n,
		})

		w.WriteHeader(status)
	}))
}

func TestDiscordDeliverer_SingleFile(t *testing.T) {
	var uploads []receivedUpload
	server := newWebhookServer(t, &uploads, http.StatusNoContent)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "db.sql")
	require.NoError(t, os.WriteFile(path, []byte("small dump"), 0644))

	d := NewDiscordDeliverer(server.URL)
	require.NoError(t, d.Deliver(context.Background(), path))

	require.Len(t, uploads, 1)
	assert.Equal(t, "db.sql", uploads[0].filename)
	assert.Equal(t, "`db.sql`", uploads[0].content)
	assert.Equal(t, int64(len("small dump")), uploads[0].size)

	// Fast path hands back the original; it must survive delivery.
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestDiscordDeliverer_SplitsAndUploadsInOrder(t *testing.T) {
	var uploads []receivedUpload
	server := newWebhookServer(t, &uploads, http.StatusOK)
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.sql")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

	d := NewDiscordDeliverer(server.URL)
	d.MaxFileBytes = 30
	require.NoError(t, d.Deliver(context.Background(), path))

	require.Len(t, uploads, 4)
	wantSizes := []int64{30, 30, 30, 10}
	for i, up := range uploads {
		assert.Equal(t, fmt.Sprintf("big.sql.part%d", i+1), up.filename)
		assert.Equal(t, fmt.Sprintf("`big.sql.part%d` (part %d/4)", i+1, i+1), up.content)
		assert.Equal(t, wantSizes[i], up.size)
	}

	// Chunks are removed after successful upload; the source stays.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "big.sql", entries[0].Name())
}

func TestDiscordDeliverer_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Invalid Webhook Token"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "db.sql")
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0644))

	d := NewDiscordDeliverer(server.URL)
	err := d.Deliver(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDiscordDeliverer_PayloadTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "db.sql")
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0644))

	d := NewDiscordDeliverer(server.URL)
	err := d.Deliver(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestDiscordDeliverer_MissingURL(t *testing.T) {
	d := NewDiscordDeliverer("")
	err := d.Deliver(context.Background(), "whatever.sql")
	assert.Error(t, err)
}

func TestDiscordDeliverer_Username(t *testing.T) {
	var gotUsername string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		var payload struct {
			Username string `json:"username"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("payload_json")), &payload))
		gotUsername = payload.Username
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "db.sql")
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0644))

	d := NewDiscordDeliverer(server.URL)
	d.Username = "hookdump"
	require.NoError(t, d.Deliver(context.Background(), path))
	assert.Equal(t, "hookdump", gotUsername)
}
