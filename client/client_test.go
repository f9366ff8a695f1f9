package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/checklist/storage"
)

// fakeServer is an in-memory checklist API.
type fakeServer struct {
	mu    sync.Mutex
	items []storage.Item
	posts int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/checklist" {
		http.Error(w, "Not found.", http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		data, _ := storage.Encode(f.items)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		items, err := storage.Decode(body)
		if err != nil {
			http.Error(w, "Invalid JSON.", http.StatusBadRequest)
			return
		}
		f.items = items
		f.posts++
		_, _ = io.WriteString(w, "Checklist updated.")
	default:
		http.Error(w, "Not found.", http.StatusNotFound)
	}
}

func setupTestClient(t *testing.T, items []storage.Item) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{items: items}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), fake
}

func TestNewDefaults(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://host:3000", New("http://host:3000///").BaseURL())
}

func TestGet(t *testing.T) {
	c, _ := setupTestClient(t, []storage.Item{{Name: "Trash", Checked: true}})

	items, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []storage.Item{{Name: "Trash", Checked: true}}, items)
}

func TestReplace(t *testing.T) {
	c, fake := setupTestClient(t, nil)

	want := []storage.Item{{Name: "Dishes"}, {Name: "Trash", Checked: true}}
	require.NoError(t, c.Replace(context.Background(), want))
	assert.Equal(t, want, fake.items)
}

func TestSetChecked(t *testing.T) {
	c, fake := setupTestClient(t, []storage.Item{{Name: "Trash"}, {Name: "Dishes"}})

	items, err := c.SetChecked(context.Background(), "Dishes", true)
	require.NoError(t, err)
	assert.Equal(t, []storage.Item{{Name: "Trash"}, {Name: "Dishes", Checked: true}}, items)
	assert.Equal(t, items, fake.items)

	_, err = c.SetChecked(context.Background(), "Laundry", true)
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
	assert.Equal(t, 1, fake.posts)
}

func TestSetCheckedKeepsUnknownFields(t *testing.T) {
	posted, err := storage.Decode([]byte(`[{"name":"Trash","checked":false,"note":"bins"},7]`))
	require.NoError(t, err)
	c, fake := setupTestClient(t, posted)

	_, err = c.SetChecked(context.Background(), "Trash", true)
	require.NoError(t, err)

	data, err := storage.Encode(fake.items)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Trash","checked":true,"note":"bins"},7]`, string(data))
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Failed to save checklist.", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background())
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "Failed to save checklist.", se.Body)
}

func TestGetMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{}")
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background())
	assert.ErrorContains(t, err, "unmarshal response")
}

func TestContextCanceled(t *testing.T) {
	c, _ := setupTestClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
