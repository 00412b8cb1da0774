package lyrics

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/nwiltsie/recall/data"
	"github.com/nwiltsie/recall/request"
)

// HTMLProvider scrapes lyrics out of an HTML page, for sites that publish
// lyrics at predictable per-song URLs but have no API. The URL pattern
// takes two %s verbs, artist slug then title slug, and selector picks the
// lyrics container.
type HTMLProvider struct {
	urlPattern string
	selector   string
}

func NewHTMLProvider(urlPattern, selector string) *HTMLProvider {
	return &HTMLProvider{urlPattern: urlPattern, selector: selector}
}

func (p *HTMLProvider) Lookup(ctx context.Context, artist, title, album string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := fmt.Sprintf(p.urlPattern, slug(artist), slug(title))
	doc, err := request.FetchHTML(u)
	if err != nil {
		return nil, fmt.Errorf("no lyrics page for '%s - %s': %w", artist, title, ErrNotFound)
	}

	text := strings.TrimSpace(doc.Find(p.selector).Text())
	if text == "" {
		return nil, fmt.Errorf("empty lyrics page for '%s - %s': %w", artist, title, ErrNotFound)
	}

	return &Result{Lyrics: text, Source: "scrape"}, nil
}

// slug folds a name the way lyrics sites build their URLs: lowercase ascii
// with hyphens for everything else.
func slug(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range data.Normalize(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
		} else {
			hyphen = true
		}
	}
	return b.String()
}
