package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-vidrank/internal/domain"
)

const testID = "dQw4w9WgXcQ"

const timedTextBody = `<?xml version="1.0" encoding="utf-8" ?>
<transcript>
  <text start="0.0" dur="2.5">Welcome to the   show</text>
  <text start="2.5" dur="3.0">it&amp;#39;s about Go &amp;amp; channels</text>
  <text start="5.5" dur="1.0">   </text>
  <text start="118.2" dur="4.1">goodbye</text>
</transcript>`

const watchPage = `<!doctype html><html><head>
<meta property="og:title" content="Scraped Title">
<meta property="og:image" content="https://img.example/scraped.jpg">
<meta itemprop="duration" content="PT4M13S">
</head><body></body></html>`

type youtubeServer struct {
	*httptest.Server
	oembedStatus    int
	timedTextStatus int
	timedText       string
	oembedCalls     atomic.Int32
	timedTextCalls  atomic.Int32
	gate            chan struct{}
}

func newYouTubeServer(t *testing.T) *youtubeServer {
	t.Helper()
	s := &youtubeServer{oembedStatus: http.StatusOK, timedTextStatus: http.StatusOK, timedText: timedTextBody}
	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		s.oembedCalls.Add(1)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Contains(t, r.URL.Query().Get("url"), "/watch?v="+testID)
		if s.oembedStatus != http.StatusOK {
			w.WriteHeader(s.oembedStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"Go Channels Explained","thumbnail_url":"https://img.example/t.jpg","author_name":"gopher"}`))
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		s.timedTextCalls.Add(1)
		if s.gate != nil {
			<-s.gate
		}
		assert.Equal(t, testID, r.URL.Query().Get("v"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		w.WriteHeader(s.timedTextStatus)
		_, _ = w.Write([]byte(s.timedText))
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(watchPage))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *youtubeServer) fetcher(cache *memoryCache) *Fetcher {
	cfg := Config{BaseURL: s.URL, HTTPClient: s.Client()}
	if cache != nil {
		cfg.Cache = cache
		cfg.CacheTTL = time.Hour
	}
	return New(cfg)
}

type memoryCache struct {
	mu     sync.Mutex
	items  map[string]domain.Item
	stored map[string]time.Time
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string]domain.Item{}, stored: map[string]time.Time{}}
}

func (c *memoryCache) GetTranscript(_ context.Context, id string, notBefore time.Time) (*domain.Item, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	item, ok := c.items[id]
	if !ok || c.stored[id].Before(notBefore) {
		return nil, false, nil
	}
	return &item, true, nil
}

func (c *memoryCache) PutTranscript(_ context.Context, item domain.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
	c.stored[item.ID] = time.Now()
	return nil
}

func TestFetcher_Fetch(t *testing.T) {
	srv := newYouTubeServer(t)
	f := srv.fetcher(nil)

	item, err := f.Fetch(context.Background(), "https://youtu.be/"+testID)
	require.NoError(t, err)

	assert.Equal(t, testID, item.ID)
	assert.Equal(t, "https://youtu.be/"+testID, item.Locator)
	assert.Equal(t, "Go Channels Explained", item.Title)
	assert.Equal(t, "https://img.example/t.jpg", item.ThumbnailURL)
	assert.Equal(t, "Welcome to the show it's about Go & channels goodbye", item.Transcript)
	assert.Equal(t, 10, item.WordCount)
	assert.Equal(t, 122, item.DurationSeconds)
}

func TestFetcher_ScrapeFallback(t *testing.T) {
	srv := newYouTubeServer(t)
	srv.oembedStatus = http.StatusUnauthorized
	srv.timedText = `<transcript><text>no timing</text></transcript>`

	item, err := srv.fetcher(nil).Fetch(context.Background(), "https://www.youtube.com/watch?v="+testID)
	require.NoError(t, err)
	assert.Equal(t, "Scraped Title", item.Title)
	assert.Equal(t, "https://img.example/scraped.jpg", item.ThumbnailURL)
	assert.Equal(t, 253, item.DurationSeconds, "duration taken from the watch page when cues carry none")
}

func TestFetcher_TranscriptFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "empty body", status: http.StatusOK, body: ""},
		{name: "no cues", status: http.StatusOK, body: `<transcript></transcript>`},
		{name: "blank cues", status: http.StatusOK, body: `<transcript><text start="0" dur="1"> </text></transcript>`},
		{name: "garbage", status: http.StatusOK, body: `<transcript><text>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newYouTubeServer(t)
			srv.timedTextStatus = tt.status
			srv.timedText = tt.body

			_, err := srv.fetcher(nil).Fetch(context.Background(), "https://youtu.be/"+testID)
			assert.ErrorIs(t, err, ErrNoTranscript)
		})
	}
}

func TestFetcher_InvalidLocator(t *testing.T) {
	f := New(Config{})
	_, err := f.Fetch(context.Background(), "https://vimeo.com/12345")
	assert.ErrorIs(t, err, ErrInvalidLocator)
}

func TestFetcher_Cache(t *testing.T) {
	srv := newYouTubeServer(t)
	cache := newMemoryCache()
	f := srv.fetcher(cache)

	first, err := f.Fetch(context.Background(), "https://youtu.be/"+testID)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v="+testID)
	require.NoError(t, err)

	assert.Equal(t, int32(1), srv.timedTextCalls.Load())
	assert.Equal(t, first.Transcript, second.Transcript)
	assert.Equal(t, "https://www.youtube.com/watch?v="+testID, second.Locator)

	t.Run("lookup errors fall through to the network", func(t *testing.T) {
		cache.getErr = errors.New("db down")
		_, err := f.Fetch(context.Background(), "https://youtu.be/"+testID)
		require.NoError(t, err)
		assert.Equal(t, int32(2), srv.timedTextCalls.Load())
	})
}

func TestFetcher_ConcurrentFetchesShareRequests(t *testing.T) {
	srv := newYouTubeServer(t)
	srv.gate = make(chan struct{})
	f := srv.fetcher(nil)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]*domain.Item, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := f.Fetch(context.Background(), "https://youtu.be/"+testID)
			assert.NoError(t, err)
			results[i] = item
		}()
	}

	require.Eventually(t, func() bool { return srv.timedTextCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Let the other callers join the in-flight request before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(srv.gate)
	wg.Wait()

	assert.Equal(t, int32(1), srv.timedTextCalls.Load())
	for _, item := range results {
		require.NotNil(t, item)
		assert.Equal(t, testID, item.ID)
	}
}

func TestFetcher_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	srv := newYouTubeServer(t)
	srv.gate = make(chan struct{})
	f := srv.fetcher(nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Fetch(firstCtx, "https://youtu.be/"+testID)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return srv.timedTextCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		item *domain.Item
		err  error
	}
	second := make(chan result, 1)
	go func() {
		item, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v="+testID)
		second <- result{item, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(srv.gate)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, testID, got.item.ID)
	assert.Equal(t, "https://www.youtube.com/watch?v="+testID, got.item.Locator)
	assert.Equal(t, int32(1), srv.timedTextCalls.Load())
}

func TestFetcher_ContextCancelled(t *testing.T) {
	srv := newYouTubeServer(t)
	srv.gate = make(chan struct{})
	defer close(srv.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := srv.fetcher(nil).Fetch(ctx, "https://youtu.be/"+testID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValidLocator(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://www.youtube.com/watch?v=" + testID, true},
		{"http://youtube.com/watch?v=" + testID, true},
		{"youtu.be/" + testID, true},
		{"https://youtu.be/" + testID + "?t=10", true},
		{"https://www.youtube.com/embed/" + testID, false},
		{"https://youtu.be/short", false},
		{"https://example.com/watch?v=" + testID, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidLocator(tt.in), tt.in)
	}
}

func TestExtractID(t *testing.T) {
	for _, in := range []string{
		"https://www.youtube.com/watch?v=" + testID + "&list=x",
		"https://youtu.be/" + testID,
		"https://www.youtube.com/embed/" + testID,
		"https://www.youtube.com/v/" + testID,
	} {
		id, ok := ExtractID(in)
		assert.True(t, ok, in)
		assert.Equal(t, testID, id, in)
	}
	_, ok := ExtractID("https://www.youtube.com/channel/abc")
	assert.False(t, ok)
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"PT4M13S", 253, true},
		{"PT1H", 3600, true},
		{"PT1H2M3S", 3723, true},
		{"PT", 0, false},
		{"4M13S", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseISODuration(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
