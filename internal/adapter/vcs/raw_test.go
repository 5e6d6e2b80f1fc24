package vcs

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAllInputOrder(t *testing.T) {
	// Random per-request delays shuffle completion order; results must still
	// come back in input order.
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(7))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		d := time.Duration(rng.Intn(20)) * time.Millisecond
		mu.Unlock()
		time.Sleep(d)
		parts := strings.Split(r.URL.Path, "/")
		fmt.Fprintf(w, "content of %s", parts[len(parts)-1])
	}))
	defer srv.Close()

	c := NewRawContentClient(srv.URL, 4, time.Second)
	paths := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"}
	contents, err := c.FetchAll(context.Background(), "owner/repo", "abc123", paths)
	require.NoError(t, err)
	require.Len(t, contents, len(paths))
	for i, p := range paths {
		assert.Equal(t, "content of "+p, contents[i])
	}
}

func TestFetchAllRequestPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := NewRawContentClient(srv.URL, 1, time.Second)
	contents, err := c.FetchAll(context.Background(), "owner/repo", "abc123", []string{"dir/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "/owner/repo/abc123/dir/a.txt", gotPath)
	assert.Equal(t, []string{"hello"}, contents)
}

func TestFetchAllMissingFileDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "gone.txt") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewRawContentClient(srv.URL, 2, time.Second)
	contents, err := c.FetchAll(context.Background(), "repo", "sha", []string{"a.txt", "gone.txt", "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "", "ok"}, contents)
}

func TestFetchAllInvalidUTF8DegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xff, 0xfe, 0x00})
	}))
	defer srv.Close()

	c := NewRawContentClient(srv.URL, 1, time.Second)
	contents, err := c.FetchAll(context.Background(), "repo", "sha", []string{"bin.dat"})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, contents)
}

func TestFetchAllNoPaths(t *testing.T) {
	c := NewRawContentClient("http://unused", 1, time.Second)
	contents, err := c.FetchAll(context.Background(), "repo", "sha", nil)
	require.NoError(t, err)
	assert.Empty(t, contents)
}
