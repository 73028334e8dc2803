package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-player/internal/media"
)

func writeFile(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, os.WriteFile(p, []byte("test"), 0o644))
}

// listServer serves body at /media/list.json; status overrides 200.
type listServer struct {
	mu     sync.Mutex
	body   string
	status int
	hits   int
}

func (s *listServer) set(body string, status int) {
	s.mu.Lock()
	s.body, s.status = body, status
	s.mu.Unlock()
}

func (s *listServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	if r.URL.Path != "/media/list.json" {
		http.NotFound(w, r)
		return
	}
	if s.status != 0 && s.status != http.StatusOK {
		w.WriteHeader(s.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(s.body))
}

func TestRemoteListResolvesRelativeSources(t *testing.T) {
	ls := &listServer{body: `[
		{"type": "image", "src": "a.jpg"},
		{"type": "video", "src": "/clips/b.mp4"},
		{"type": "video", "src": "https://cdn.example.com/c.mp4", "muted": false}
	]`}
	srv := httptest.NewServer(ls)
	defer srv.Close()

	r := NewRemote(srv.URL+"/media/list.json", srv.Client(), time.Minute)
	items, err := r.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []media.Item{
		{Kind: media.Image, Source: srv.URL + "/media/a.jpg"},
		{Kind: media.Video, Source: srv.URL + "/clips/b.mp4", Muted: true},
		{Kind: media.Video, Source: "https://cdn.example.com/c.mp4", Muted: false},
	}, items)
}

func TestRemoteListErrors(t *testing.T) {
	ls := &listServer{status: http.StatusInternalServerError}
	srv := httptest.NewServer(ls)
	defer srv.Close()

	r := NewRemote(srv.URL+"/media/list.json", srv.Client(), time.Minute)
	_, err := r.List(context.Background())
	assert.ErrorContains(t, err, "unexpected status 500")

	ls.set(`[{"type": "audio", "src": "x.mp3"}]`, 0)
	_, err = r.List(context.Background())
	assert.ErrorIs(t, err, media.ErrInvalidList)
}

func TestRemoteWatchDeliversOnlyChanges(t *testing.T) {
	ls := &listServer{body: `[{"type": "image", "src": "a.jpg"}]`}
	srv := httptest.NewServer(ls)
	defer srv.Close()

	r := NewRemote(srv.URL+"/media/list.json", srv.Client(), 20*time.Millisecond)
	lists := collect(t, r)

	first := receive(t, lists)
	require.Len(t, first, 1)
	assertQuiet(t, lists, 150*time.Millisecond)

	// a failing poll keeps the current list
	ls.set("", http.StatusBadGateway)
	assertQuiet(t, lists, 100*time.Millisecond)

	ls.set(`[{"type": "image", "src": "a.jpg"}, {"type": "image", "src": "b.jpg"}]`, 0)
	second := receive(t, lists)
	assert.Len(t, second, 2)
}
