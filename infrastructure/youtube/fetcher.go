// Package youtube resolves video links into items: metadata from oEmbed with
// a watch-page scrape fallback, and the transcript from the timedtext
// endpoint. Fetched items are cached when a TranscriptCache is configured.
package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

const (
	// DefaultBaseURL is the site all default endpoints hang off.
	DefaultBaseURL = "https://www.youtube.com"

	// UnknownTitle is used when no metadata source yields a title.
	UnknownTitle = "Unknown"
)

var (
	// ErrInvalidLocator is returned for links without a recognisable video id.
	ErrInvalidLocator = errors.New("not a YouTube video link")

	// ErrNoTranscript is returned when a video has no usable transcript.
	ErrNoTranscript = errors.New("no transcript available")
)

// Config configures a Fetcher. Zero values select the public endpoints.
type Config struct {
	BaseURL      string
	OEmbedURL    string
	TimedTextURL string
	Language     string
	HTTPClient   *http.Client

	// Cache is optional. Entries older than CacheTTL are ignored; a zero
	// TTL never expires entries.
	Cache    ports.TranscriptCache
	CacheTTL time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Fetcher implements ports.Fetcher for YouTube links. Concurrent fetches of
// the same video share one set of requests.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	group  singleflight.Group
}

var _ ports.Fetcher = (*Fetcher)(nil)

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.OEmbedURL == "" {
		cfg.OEmbedURL = cfg.BaseURL + "/oembed"
	}
	if cfg.TimedTextURL == "" {
		cfg.TimedTextURL = cfg.BaseURL + "/api/timedtext"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// Fetch implements ports.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (*domain.Item, error) {
	id, ok := ExtractID(locator)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	// The shared fetch outlives any single caller; the HTTP client timeout
	// bounds it and each caller still honours its own ctx below.
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(id, func() (any, error) {
		return f.fetch(shared, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		item := *res.Val.(*domain.Item)
		item.Locator = locator
		return &item, nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, id string) (*domain.Item, error) {
	if item, ok := f.cached(ctx, id); ok {
		return item, nil
	}

	meta, err := f.oembed(ctx, id)
	if err != nil {
		f.logger.Warn("oembed lookup failed, scraping watch page", "video_id", id, "err", err)
		if meta, err = f.scrape(ctx, id); err != nil {
			f.logger.Warn("watch page scrape failed", "video_id", id, "err", err)
			meta = metadata{Title: UnknownTitle}
		}
	}

	transcript, duration, err := f.transcript(ctx, id)
	if err != nil {
		return nil, err
	}
	if duration == 0 {
		duration = meta.Duration
	}

	item := domain.NewItem(id, meta.Title, duration, transcript)
	item.ThumbnailURL = meta.ThumbnailURL
	f.logger.Info("video fetched", "video_id", id, "words", item.WordCount, "duration_seconds", duration)

	if f.cfg.Cache != nil {
		if err := f.cfg.Cache.PutTranscript(ctx, item); err != nil {
			f.logger.Warn("caching transcript failed", "video_id", id, "err", err)
		}
	}
	return &item, nil
}

func (f *Fetcher) cached(ctx context.Context, id string) (*domain.Item, bool) {
	if f.cfg.Cache == nil {
		return nil, false
	}
	var notBefore time.Time
	if f.cfg.CacheTTL > 0 {
		notBefore = f.cfg.Now().Add(-f.cfg.CacheTTL)
	}
	item, ok, err := f.cfg.Cache.GetTranscript(ctx, id, notBefore)
	if err != nil {
		f.logger.Warn("transcript cache lookup failed", "video_id", id, "err", err)
		return nil, false
	}
	if ok {
		f.logger.Debug("transcript cache hit", "video_id", id)
	}
	return item, ok && item != nil
}

type metadata struct {
	Title        string
	ThumbnailURL string
	Duration     int
}

func (f *Fetcher) watchURL(id string) string {
	return f.cfg.BaseURL + "/watch?v=" + url.QueryEscape(id)
}

func (f *Fetcher) oembed(ctx context.Context, id string) (metadata, error) {
	q := url.Values{"url": {f.watchURL(id)}, "format": {"json"}}
	body, err := f.get(ctx, f.cfg.OEmbedURL+"?"+q.Encode())
	if err != nil {
		return metadata{}, err
	}
	defer body.Close()

	var payload struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
		AuthorName   string `json:"author_name"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return metadata{}, fmt.Errorf("decode oembed: %w", err)
	}
	if payload.Title == "" {
		payload.Title = UnknownTitle
	}
	return metadata{Title: payload.Title, ThumbnailURL: payload.ThumbnailURL}, nil
}

func (f *Fetcher) scrape(ctx context.Context, id string) (metadata, error) {
	body, err := f.get(ctx, f.watchURL(id))
	if err != nil {
		return metadata{}, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return metadata{}, fmt.Errorf("parse watch page: %w", err)
	}

	meta := metadata{Title: UnknownTitle}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && title != "" {
		meta.Title = title
	}
	if thumb, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		meta.ThumbnailURL = thumb
	}
	if raw, ok := doc.Find(`meta[itemprop="duration"]`).Attr("content"); ok {
		meta.Duration, _ = parseISODuration(raw)
	}
	return meta, nil
}

type timedText struct {
	Cues []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

// transcript returns the joined cue text and the duration implied by the
// last cue.
func (f *Fetcher) transcript(ctx context.Context, id string) (string, int, error) {
	q := url.Values{"v": {id}, "lang": {f.cfg.Language}}
	body, err := f.get(ctx, f.cfg.TimedTextURL+"?"+q.Encode())
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrNoTranscript, err)
	}
	defer body.Close()

	var tt timedText
	if err := xml.NewDecoder(body).Decode(&tt); err != nil {
		if errors.Is(err, io.EOF) {
			return "", 0, ErrNoTranscript
		}
		return "", 0, fmt.Errorf("%w: decode timedtext: %w", ErrNoTranscript, err)
	}

	parts := make([]string, 0, len(tt.Cues))
	for _, cue := range tt.Cues {
		// Cue text is HTML-escaped inside the XML.
		if text := strings.Join(strings.Fields(html.UnescapeString(cue.Text)), " "); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", 0, ErrNoTranscript
	}

	last := tt.Cues[len(tt.Cues)-1]
	start, _ := strconv.ParseFloat(last.Start, 64)
	dur, _ := strconv.ParseFloat(last.Dur, 64)
	return strings.Join(parts, " "), int(start + dur), nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return resp.Body, nil
}
