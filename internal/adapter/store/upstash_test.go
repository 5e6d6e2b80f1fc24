package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arturoeanton/go-pr-dedup/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstashUpsert(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Write([]byte(`{"result":"Success"}`))
	}))
	defer srv.Close()

	s := NewUpstashStore(srv.URL, "secret", time.Second)
	err := s.Upsert(context.Background(), "repo:1", []float32{0.1, 0.2})
	require.NoError(t, err)

	assert.Equal(t, "/upsert", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "repo:1", gotBody["id"])
	assert.Len(t, gotBody["vector"], 2)
}

func TestUpstashQueryFiltersAndSorts(t *testing.T) {
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Write([]byte(`{"result":[
			{"id":"repo:1","score":0.99},
			{"id":"repo:2","score":0.85},
			{"id":"other:9","score":0.95},
			{"id":"repo:3","score":0.92},
			{"id":"repo:4","score":0.5}
		]}`))
	}))
	defer srv.Close()

	s := NewUpstashStore(srv.URL, "secret", time.Second)
	matches, err := s.Query(context.Background(), []float32{0.1}, 10, 80, "repo:1", "repo")
	require.NoError(t, err)

	assert.Equal(t, float64(10), gotBody["topK"])
	assert.Equal(t, false, gotBody["includeVectors"])
	assert.Equal(t, false, gotBody["includeMetadata"])

	// Self id, other repo and the sub-threshold hit are gone; order is
	// descending by percentage.
	require.Len(t, matches, 2)
	assert.Equal(t, "https://github.com/repo/pull/3", matches[0].PRURL)
	assert.InDelta(t, 92, matches[0].Percentage, 1e-9)
	assert.Equal(t, "https://github.com/repo/pull/2", matches[1].PRURL)
	assert.InDelta(t, 85, matches[1].Percentage, 1e-9)
}

func TestUpstashQueryClampsPercentage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"id":"repo:2","score":1.03}]}`))
	}))
	defer srv.Close()

	s := NewUpstashStore(srv.URL, "secret", time.Second)
	matches, err := s.Query(context.Background(), []float32{0.1}, 10, 80, "repo:1", "repo")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, float64(100), matches[0].Percentage)
}

func TestUpstashQueryBadStoredID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"id":"not-an-id","score":0.9}]}`))
	}))
	defer srv.Close()

	s := NewUpstashStore(srv.URL, "secret", time.Second)
	_, err := s.Query(context.Background(), []float32{0.1}, 10, 80, "repo:1", "repo")
	assert.Error(t, err)
}

func TestUpstashDelete(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Write([]byte(`{"result":{"deleted":1}}`))
	}))
	defer srv.Close()

	s := NewUpstashStore(srv.URL, "secret", time.Second)
	require.NoError(t, s.Delete(context.Background(), "repo:1"))

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/delete", gotPath)
	assert.Equal(t, []string{"repo:1"}, gotBody)
}

func TestUpstashRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad token"))
	}))
	defer srv.Close()

	s := NewUpstashStore(srv.URL, "wrong", time.Second)
	err := s.Upsert(context.Background(), "repo:1", []float32{0.1})
	require.Error(t, err)

	var storeErr *port.RemoteStoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, http.StatusUnauthorized, storeErr.Status)
	assert.Equal(t, "bad token", storeErr.Body)
}
