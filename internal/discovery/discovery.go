package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/net/html"

	"github.com/signalnine/wptnightly/internal/result"
)

var ErrNoLinks = errors.New("no conformance test links found")

// excludedSuffixes lists companion resources served next to the tests.
var excludedSuffixes = []string{"headers"}

type Fetcher struct {
	ListingURL string
	Client     *http.Client
	Retries    uint64
	Backoff    time.Duration
	Log        zerolog.Logger
}

func NewFetcher(listingURL string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		ListingURL: listingURL,
		Client:     &http.Client{Timeout: time.Minute},
		Retries:    3,
		Backoff:    time.Second,
		Log:        log.With().Str("component", "discovery").Logger(),
	}
}

// Links fetches the directory listing and returns the test links in the
// order they are listed.
func (f *Fetcher) Links(ctx context.Context) ([]result.TestLink, error) {
	base, err := url.Parse(f.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parsing listing url: %w", err)
	}

	backoff, err := retry.NewExponential(f.Backoff)
	if err != nil {
		return nil, err
	}
	var body []byte
	err = retry.Do(ctx, retry.WithMaxRetries(f.Retries, backoff), func(ctx context.Context) error {
		var fetchErr error
		body, fetchErr = f.fetch(ctx)
		if fetchErr != nil {
			f.Log.Warn().Err(fetchErr).Str("url", f.ListingURL).Msg("Fetching test listing")
			return retry.RetryableError(fetchErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", f.ListingURL, err)
	}

	links, err := ParseListing(bytes.NewReader(body), base)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrNoLinks
	}
	f.Log.Info().Int("links", len(links)).Msg("Discovered test links")
	return links, nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ListingURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ParseListing collects the href of every anchor that is a direct child of
// an <li class="file">, resolved against base. Excluded resources and
// duplicates are dropped.
func ParseListing(r io.Reader, base *url.URL) ([]result.TestLink, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}

	var links []result.TestLink
	seen := map[string]bool{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && isFileItem(n.Parent) {
			if href := attr(n, "href"); href != "" {
				if ref, err := base.Parse(href); err == nil {
					abs := ref.String()
					if !excluded(abs) && !seen[abs] {
						seen[abs] = true
						links = append(links, result.TestLink(abs))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func isFileItem(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == "li" && hasClass(n, "file")
}

func excluded(link string) bool {
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(link, suffix) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
