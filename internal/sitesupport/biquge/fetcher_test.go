package biquge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := New(Config{RetryTimes: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	return f
}

func TestFetcher_GetSucceedsOnFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	body, err := f.get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "hello", body)
}

func TestFetcher_GetRetriesOn500ThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	body, err := f.get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "recovered", body)
	require.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestFetcher_GetDoesNotRetryOn404(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.get(context.Background(), srv.URL)
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestFetcher_GetExhaustsRetriesOnPersistent500(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.get(context.Background(), srv.URL)
	require.Error(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestURLFormats(t *testing.T) {
	require.Equal(t, "http://www.b520.cc/12345/", fmt.Sprintf(bookInfoURLFormat, "12345"))
	require.Equal(t, "http://www.b520.cc/12345/6.html", fmt.Sprintf(chapterURLFormat, "12345", "6"))
}

func TestFetcher_LoginAndStateAreNoOps(t *testing.T) {
	f := newTestFetcher(t)
	ok, err := f.Login(context.Background(), "", "", nil, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, f.IsLoggedIn())

	ok, err = f.LoadState(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.SaveState(context.Background()))
}
