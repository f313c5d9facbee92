package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, token string) (*httptest.Server, map[string][]byte) {
	t.Helper()
	var mu sync.Mutex
	objects := map[string][]byte{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"`+token+`","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/objects/", func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/objects/")
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			objects[key] = data
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			data, ok := objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(data)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, objects
}

func TestHTTPStoreWithClientCredentials(t *testing.T) {
	srv, objects := newGateway(t, "tok-123")
	ctx := context.Background()

	store, err := NewHTTPStore(ctx, HTTPStoreConfig{
		BaseURL:      srv.URL + "/objects/",
		TokenURL:     srv.URL + "/token",
		ClientID:     "curator",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "curated/person/person.csv", []byte("person_id\n"), ContentTypeCSV))
	assert.Equal(t, "person_id\n", string(objects["curated/person/person.csv"]))

	got, err := store.Get(ctx, "curated/person/person.csv")
	require.NoError(t, err)
	assert.Equal(t, "person_id\n", string(got))

	_, err = store.Get(ctx, "curated/other.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStoreUnauthorized(t *testing.T) {
	srv, _ := newGateway(t, "tok-123")
	store, err := NewHTTPStore(context.Background(), HTTPStoreConfig{BaseURL: srv.URL + "/objects"})
	require.NoError(t, err)

	err = store.Put(context.Background(), "a.csv", []byte("x"), ContentTypeCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewHTTPStoreRejectsBadURL(t *testing.T) {
	_, err := NewHTTPStore(context.Background(), HTTPStoreConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}
