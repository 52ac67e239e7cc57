package downloader

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T) (*Fetcher, *storage.Manager) {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	return NewFetcher(store, Options{ChunkSize: 16, Logger: logger.NewNopLogger()}), store
}

func assetServer(t *testing.T, body []byte) (*httptest.Server, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/ok.jpg":
			w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchStreamsToStore(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789"), 10)
	srv, _ := assetServer(t, body)
	f, store := newFetcher(t)

	path, err := f.Fetch(context.Background(), srv.URL+"/ok.jpg", "101", nil)
	require.NoError(t, err)
	assert.Equal(t, store.PathFor("101"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchSkipsExistingAsset(t *testing.T) {
	srv, hits := assetServer(t, []byte("x"))
	f, _ := newFetcher(t)

	_, err := f.Fetch(context.Background(), srv.URL+"/ok.jpg", "101", nil)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), srv.URL+"/ok.jpg", "101", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchHaltsBetweenChunks(t *testing.T) {
	srv, _ := assetServer(t, bytes.Repeat([]byte("a"), 1000))
	f, store := newFetcher(t)

	polls := 0
	_, err := f.Fetch(context.Background(), srv.URL+"/ok.jpg", "101", func() bool {
		polls++
		return polls > 3
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeCancelled))
	assert.False(t, store.Exists("101"))
	assert.Equal(t, 4, polls)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv, _ := assetServer(t, nil)
	f, _ := newFetcher(t)

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.jpg", "101", nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAssetDownload))
}

func TestFetchWithFallback(t *testing.T) {
	body := []byte("fallback image")
	srv, hits := assetServer(t, body)

	t.Run("primary fails, fallback succeeds", func(t *testing.T) {
		f, store := newFetcher(t)
		path := f.FetchWithFallback(context.Background(), srv.URL+"/missing.jpg", srv.URL+"/ok.jpg", "1", nil)
		assert.Equal(t, store.PathFor("1"), path)
	})

	t.Run("both fail gives empty path after exactly two requests", func(t *testing.T) {
		f, _ := newFetcher(t)
		before := atomic.LoadInt32(hits)
		path := f.FetchWithFallback(context.Background(), srv.URL+"/a.jpg", srv.URL+"/b.jpg", "2", nil)
		assert.Empty(t, path)
		assert.Equal(t, before+2, atomic.LoadInt32(hits))
	})

	t.Run("cancelled primary skips fallback", func(t *testing.T) {
		f, _ := newFetcher(t)
		before := atomic.LoadInt32(hits)
		path := f.FetchWithFallback(context.Background(), srv.URL+"/ok.jpg", srv.URL+"/ok.jpg?alt", "3", func() bool { return true })
		assert.Empty(t, path)
		assert.Equal(t, before+1, atomic.LoadInt32(hits))
	})
}
