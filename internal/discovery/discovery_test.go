package discovery_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/signalnine/wptnightly/internal/discovery"
	"github.com/signalnine/wptnightly/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `<!DOCTYPE html>
<html><body>
<h1>Index of /webnn/conformance_tests/</h1>
<ul>
  <li class="dir"><a href="/webnn/conformance_tests/resources/">resources/</a></li>
  <li class="file"><a href="/webnn/conformance_tests/abs.https.any.js">abs.https.any.js</a></li>
  <li class="file"><a href="/webnn/conformance_tests/abs.https.any.js.headers">abs.https.any.js.headers</a></li>
  <li class="file"><a href="batch_normalization.https.any.js">batch_normalization.https.any.js</a></li>
  <li class="file"><a href="/webnn/conformance_tests/abs.https.any.js">abs.https.any.js</a></li>
  <li class="file"><a href="https://wpt.live/webnn/conformance_tests/gru.https.any.js">gru.https.any.js</a></li>
</ul>
<a href="/outside.js">outside</a>
</body></html>`

func TestParseListing(t *testing.T) {
	base, err := url.Parse("https://wpt.live/webnn/conformance_tests/")
	require.NoError(t, err)

	links, err := discovery.ParseListing(strings.NewReader(listing), base)
	require.NoError(t, err)
	assert.Equal(t, []result.TestLink{
		"https://wpt.live/webnn/conformance_tests/abs.https.any.js",
		"https://wpt.live/webnn/conformance_tests/batch_normalization.https.any.js",
		"https://wpt.live/webnn/conformance_tests/gru.https.any.js",
	}, links)
}

func TestParseListingDirectChildrenOnly(t *testing.T) {
	base, err := url.Parse("https://wpt.live/webnn/conformance_tests/")
	require.NoError(t, err)

	doc := `<ul>
  <li class="file"><a href="relu.https.any.js">relu.https.any.js</a><span><a href="nested.https.any.js">nested</a></span></li>
</ul>`
	links, err := discovery.ParseListing(strings.NewReader(doc), base)
	require.NoError(t, err)
	assert.Equal(t, []result.TestLink{"https://wpt.live/webnn/conformance_tests/relu.https.any.js"}, links)
}

func newFetcher(url string) *discovery.Fetcher {
	f := discovery.NewFetcher(url, zerolog.Nop())
	f.Backoff = 10 * time.Millisecond
	return f
}

func TestFetcherRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(listing))
	}))
	defer srv.Close()

	links, err := newFetcher(srv.URL + "/webnn/conformance_tests/").Links(context.Background())
	require.NoError(t, err)
	assert.Len(t, links, 3)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, strings.HasPrefix(string(links[0]), srv.URL))
}

func TestFetcherGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL).Links(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetcherNoLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ul><li class="dir"><a href="resources/">resources/</a></li></ul>`))
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL).Links(context.Background())
	assert.True(t, errors.Is(err, discovery.ErrNoLinks))
}
