package scraper

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWalker_DefaultsApplied(t *testing.T) {
	w := NewWalker(nil, nil, nil, slog.Default(), WalkerOptions{})

	assert.Equal(t, 50, w.maxPages)
	assert.Equal(t, 2, w.maxConsecutiveTimeouts)
	assert.Equal(t, time.Second, w.settle)
}

func TestNewWalker_OptionsKept(t *testing.T) {
	w := NewWalker(nil, nil, nil, slog.Default(), WalkerOptions{
		MaxPages:               7,
		MaxConsecutiveTimeouts: 3,
		Settle:                 250 * time.Millisecond,
	})

	assert.Equal(t, 7, w.maxPages)
	assert.Equal(t, 3, w.maxConsecutiveTimeouts)
	assert.Equal(t, 250*time.Millisecond, w.settle)
}

// The next-control selector is the walker's termination predicate: a missing
// or disabled control means the last page was reached.
func TestNextControlSelector(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{
			"enabled next control",
			`<span class="pagination"><input type="submit" value="&gt;"></span>`,
			1,
		},
		{
			"disabled next control",
			`<span class="pagination"><input type="submit" value="&gt;" disabled></span>`,
			0,
		},
		{
			"no next control",
			`<span class="pagination"><input type="submit" value="&lt;"></span>`,
			0,
		},
		{
			"outside pagination",
			`<div><input type="submit" value="&gt;"></div>`,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Find(nextButtonSelector).Length())
		})
	}
}
