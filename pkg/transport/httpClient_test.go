package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zoff-tech/go-opqueue/pkg/config"
	"github.com/zoff-tech/go-opqueue/pkg/store"
)

func dispatchEntry() *store.QueueEntry {
	return &store.QueueEntry{
		ID:        "entry-1",
		Operation: store.OpConfigUpdate,
		Endpoint:  "/config/server.port",
		Method:    "PUT",
		Payload:   []byte(`{"value":"8083"}`),
		CreatedAt: time.Now().UTC(),
		Status:    store.StatusPending,
	}
}

func TestHTTPDispatchSuccess(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(&config.APISettings{Type: "http", BaseURL: server.URL})
	assert.NoError(t, err)
	defer client.Close()

	res, err := client.Dispatch(context.Background(), dispatchEntry())
	assert.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, `{"ok":true}`, res.Body)

	assert.Equal(t, "PUT", gotMethod)
	assert.Equal(t, "/config/server.port", gotPath)
	assert.Equal(t, `{"value":"8083"}`, gotBody)
}

func TestHTTPDispatchRejectionKeepsBodyVerbatim(t *testing.T) {
	body := `{"error":"conflict","detail":"config changed on device"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(body))
	}))
	defer server.Close()

	client, err := NewHTTPClient(&config.APISettings{Type: "http", BaseURL: server.URL})
	assert.NoError(t, err)
	defer client.Close()

	res, err := client.Dispatch(context.Background(), dispatchEntry())
	assert.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 409, res.StatusCode)
	assert.Equal(t, body, res.Body)
}

func TestHTTPDispatchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := NewHTTPClient(&config.APISettings{Type: "http", BaseURL: server.URL})
	assert.NoError(t, err)
	defer client.Close()

	res, err := client.Dispatch(context.Background(), dispatchEntry())
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestHTTPDispatchJoinsBaseURL(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	// Trailing slash on the base URL must not produce a double slash.
	client, err := NewHTTPClient(&config.APISettings{Type: "http", BaseURL: server.URL + "/"})
	assert.NoError(t, err)
	defer client.Close()

	res, err := client.Dispatch(context.Background(), dispatchEntry())
	assert.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "/config/server.port", gotPath)
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	client, err := NewHTTPClient(&config.APISettings{Type: "http"})
	assert.Error(t, err)
	assert.Nil(t, client)
}
