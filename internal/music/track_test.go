package music

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "0:00"},
		{"seconds only", 9, "0:09"},
		{"minute boundary", 60, "1:00"},
		{"typical", 75, "1:15"},
		{"padded seconds", 125, "2:05"},
		{"over an hour", 3661, "61:01"},
		{"negative", -5, "0:00"},
		{"nan", math.NaN(), "0:00"},
		{"positive inf", math.Inf(1), "0:00"},
		{"fractional truncates", 75.9, "1:15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDuration(tc.seconds))
		})
	}
}

func TestTrackViewDefaults(t *testing.T) {
	view := Track{ID: "a", Title: "A", DurationSeconds: 75}.View()

	assert.Equal(t, "1:15", view.FormattedDuration)
	assert.False(t, view.IsLive, "isLive must default to false, never null")
	assert.Nil(t, view.Metadata.AddedBy)
}

func TestTrackViewAttribution(t *testing.T) {
	user := &UserRef{ID: "u1", Name: "alice"}
	view := Track{ID: "a", Title: "A", AddedBy: user}.View()

	assert.Equal(t, user, view.Metadata.AddedBy)
}
