package readiness

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-player/internal/media"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, 4, 4))
	im.Set(1, 1, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, im))
}

func TestDecoderLocalFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writePNG(t, good)
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))
	svg := filepath.Join(dir, "logo.svg")
	require.NoError(t, os.WriteFile(svg, []byte("<svg/>"), 0644))

	d := NewDecoder(nil)
	ctx := context.Background()

	assert.NoError(t, d.DecodeSync(ctx, good))
	assert.NoError(t, d.DecodeSync(ctx, "file://"+good))
	assert.NoError(t, d.DecodeSync(ctx, svg))
	assert.Error(t, d.DecodeSync(ctx, bad))
	assert.Error(t, d.DecodeSync(ctx, filepath.Join(dir, "missing.png")))
}

func TestDecoderHTTP(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	d := NewDecoder(srv.Client())
	assert.NoError(t, d.DecodeSync(context.Background(), srv.URL+"/a.png"))
	assert.Error(t, d.DecodeSync(context.Background(), srv.URL+"/missing.png"))
}

func TestDecoderAsyncReportsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path)

	done := make(chan error, 2)
	NewDecoder(nil).Decode(context.Background(), path, func(err error) { done <- err })

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for decode")
	}
}

func TestWarmerCoalescesPrefetches(t *testing.T) {
	dec := &fakeDecoder{}
	w := NewWarmer(dec, nil)

	w.Prefetch(img)
	w.Prefetch(img)
	require.Len(t, dec.pending, 1)

	dec.pending[0](nil)
	w.Wait()

	w.Prefetch(img)
	require.Len(t, dec.pending, 2)
	dec.pending[1](nil)
	w.Wait()
}

func TestWarmerVideoExistence(t *testing.T) {
	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWarmer(&fakeDecoder{}, srv.Client())
	w.Prefetch(media.Item{Kind: media.Video, Source: srv.URL + "/clip.mp4"})
	w.Prefetch(media.Item{Kind: media.Video, Source: filepath.Join(t.TempDir(), "missing.mp4")})
	w.Wait()

	assert.Equal(t, int32(1), heads.Load())
}

// countingServer serves a PNG at /a.png and counts GETs per path.
func countingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "c.png"))
	var gets atomic.Int32
	files := http.FileServer(http.Dir(dir))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &gets
}

func decodeNow(t *testing.T, d *Decoder, src string) error {
	t.Helper()
	done := make(chan error, 1)
	d.Decode(context.Background(), src, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for decode")
		return nil
	}
}

func TestDecoderRemembersSuccessfulDecodes(t *testing.T) {
	srv, gets := countingServer(t)
	d := NewDecoder(srv.Client())

	require.NoError(t, decodeNow(t, d, srv.URL+"/a.png"))
	require.NoError(t, decodeNow(t, d, srv.URL+"/a.png"))
	assert.Equal(t, int32(1), gets.Load())
	assert.True(t, d.Cached(srv.URL+"/a.png"))

	// failures are fetched again every time
	require.Error(t, decodeNow(t, d, srv.URL+"/missing.png"))
	require.Error(t, decodeNow(t, d, srv.URL+"/missing.png"))
	assert.Equal(t, int32(3), gets.Load())
	assert.False(t, d.Cached(srv.URL+"/missing.png"))
}

func TestDecoderEvictsLeastRecentlyUsed(t *testing.T) {
	srv, gets := countingServer(t)
	d := NewDecoder(srv.Client())
	d.size = 2

	require.NoError(t, decodeNow(t, d, srv.URL+"/a.png"))
	require.NoError(t, decodeNow(t, d, srv.URL+"/b.png"))
	require.NoError(t, decodeNow(t, d, srv.URL+"/a.png")) // a is now most recent
	require.NoError(t, decodeNow(t, d, srv.URL+"/c.png"))

	assert.True(t, d.Cached(srv.URL+"/a.png"))
	assert.False(t, d.Cached(srv.URL+"/b.png"))
	assert.True(t, d.Cached(srv.URL+"/c.png"))
	assert.Equal(t, int32(3), gets.Load())
}

// gatedServer holds every request until release is closed.
func gatedServer(t *testing.T) (srv *httptest.Server, entered <-chan struct{}, release chan struct{}, gets *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	files := http.FileServer(http.Dir(dir))
	in := make(chan struct{}, 4)
	release = make(chan struct{})
	gets = &atomic.Int32{}
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		in <- struct{}{}
		<-release
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, in, release, gets
}

func TestDecoderSharesInflightFetch(t *testing.T) {
	srv, entered, release, gets := gatedServer(t)
	d := NewDecoder(srv.Client())

	done := make(chan error, 2)
	d.Decode(context.Background(), srv.URL+"/a.png", func(err error) { done <- err })
	<-entered
	d.Decode(context.Background(), srv.URL+"/a.png", func(err error) { done <- err })
	close(release)

	for range 2 {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for decode")
		}
	}
	assert.Equal(t, int32(1), gets.Load())
}

func TestDecoderCallerCancelKeepsSharedDecode(t *testing.T) {
	srv, entered, release, gets := gatedServer(t)
	d := NewDecoder(srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	d.Decode(ctx, srv.URL+"/a.png", func(err error) { done <- err })
	<-entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool { return d.Cached(srv.URL + "/a.png") }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), gets.Load())
}
