// Package youtube resolves track metadata and search results. Metadata
// comes from the innertube API via kkdai/youtube; search result ids are
// scraped off the public results page, which needs no API key.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"time"

	kkdai "github.com/kkdai/youtube/v2"
	"golang.org/x/time/rate"

	"github.com/Pooh303/sec3music-bot/internal/music"
)

// Client wraps everything this bot asks YouTube for. Requests are
// throttled with a shared limiter so a burst of web commands cannot hammer
// the upstream.
type Client struct {
	yt      *kkdai.Client
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

func NewClient() *Client {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	return &Client{
		yt:      &kkdai.Client{HTTPClient: httpClient},
		http:    httpClient,
		baseURL: "https://www.youtube.com",
		limiter: rate.NewLimiter(rate.Limit(4), 8),
	}
}

// ResolveTrack fetches metadata for a video URL or id and maps it onto the
// stable track shape. A zero reported duration is treated as a live
// stream, which the seek path refuses to touch.
func (c *Client) ResolveTrack(ctx context.Context, url string) (music.Track, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return music.Track{}, err
	}

	v, err := c.yt.GetVideoContext(ctx, url)
	if err != nil {
		return music.Track{}, fmt.Errorf("resolve track %q: %w", url, err)
	}

	return music.Track{
		ID:              v.ID,
		Title:           v.Title,
		DurationSeconds: int(v.Duration.Seconds()),
		URL:             c.baseURL + "/watch?v=" + v.ID,
		Thumbnail:       pickThumbnail(v.Thumbnails),
		IsLive:          v.Duration == 0,
	}, nil
}

// pickThumbnail prefers a medium-sized thumbnail and falls back to the
// first one available.
func pickThumbnail(thumbs kkdai.Thumbnails) string {
	if len(thumbs) == 0 {
		return ""
	}
	best := thumbs[0]
	for _, t := range thumbs {
		if t.Width >= 300 && t.Width <= 400 {
			return t.URL
		}
		if t.Width > best.Width {
			best = t
		}
	}
	return best.URL
}
