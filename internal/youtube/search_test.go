package youtube

import (
	"fmt"
	"testing"

	kkdai "github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
)

func thumbnailsOf(widths ...uint) kkdai.Thumbnails {
	var out kkdai.Thumbnails
	for _, w := range widths {
		out = append(out, kkdai.Thumbnail{URL: fmt.Sprintf("w%d", w), Width: w})
	}
	return out
}

const resultsPageSample = `
{"url":"/watch?v=dQw4w9WgXcQ","webPageType":"WEB_PAGE_TYPE_WATCH"}
{"url":"/watch?v=dQw4w9WgXcQ","webPageType":"WEB_PAGE_TYPE_WATCH"}
{"url":"/watch?v=9bZkp7q19f0","webPageType":"WEB_PAGE_TYPE_WATCH"}
{"url":"/browse?id=whatever"}
{"url":"/watch?v=kJQP7kiw5Fk","webPageType":"WEB_PAGE_TYPE_WATCH"}
`

func TestExtractVideoIDs(t *testing.T) {
	ids := extractVideoIDs(resultsPageSample, 10)
	assert.Equal(t, []string{"dQw4w9WgXcQ", "9bZkp7q19f0", "kJQP7kiw5Fk"}, ids)
}

func TestExtractVideoIDsHonorsLimit(t *testing.T) {
	ids := extractVideoIDs(resultsPageSample, 2)
	assert.Equal(t, []string{"dQw4w9WgXcQ", "9bZkp7q19f0"}, ids)
}

func TestExtractVideoIDsEmptyPage(t *testing.T) {
	assert.Empty(t, extractVideoIDs("nothing to see here", 10))
}

func TestPickThumbnailPrefersMedium(t *testing.T) {
	// Shape mirrors what the metadata client returns: ascending sizes.
	thumbs := thumbnailsOf(120, 320, 480)
	assert.Equal(t, "w320", pickThumbnail(thumbs))
}

func TestPickThumbnailFallsBackToLargest(t *testing.T) {
	thumbs := thumbnailsOf(120, 480)
	assert.Equal(t, "w480", pickThumbnail(thumbs))
}

func TestPickThumbnailEmpty(t *testing.T) {
	assert.Equal(t, "", pickThumbnail(nil))
}
