package result

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TestLink is the URL of one conformance test module.
type TestLink string

var suiteSuffixes = []string{".https.any.js", ".any.js", ".js"}

// Suite derives the testsuite name from the link, e.g.
// ".../element_wise_binary.https.any.js" becomes "elementWiseBinary".
func (l TestLink) Suite() string {
	name := path.Base(string(l))
	for _, suffix := range suiteSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	parts := strings.Split(name, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(p)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(p[size:])
	}
	return b.String()
}

// URL returns the page that runs the test module on the given device.
func (l TestLink) URL(device string) string {
	return strings.TrimSuffix(string(l), ".js") + ".html?" + device
}

type Status string

const (
	StatusPass    Status = "Pass"
	StatusFail    Status = "Fail"
	StatusTimeout Status = "Timeout"
	StatusNotRun  Status = "Not Run"
)

// Terminal reports whether the status is a definite outcome. Timeout and
// Not Run rows only count as final on the last retry pass.
func (s Status) Terminal() bool {
	return s != StatusTimeout && s != StatusNotRun
}

// Row is one test case outcome scraped from a result page.
type Row struct {
	Suite   string `json:"suite"`
	Case    string `json:"case"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

func (r Row) Key() Key {
	return Key{Suite: r.Suite, Case: r.Case}
}

// Key identifies a test case across runs.
type Key struct {
	Suite string
	Case  string
}

func (k Key) String() string {
	return k.Suite + "||" + k.Case
}

// BackendResultSet holds everything one target produced during a run.
type BackendResultSet struct {
	Target     string
	Rows       []Row
	Unresolved []TestLink
}

// Artifact points at a persisted BackendResultSet.
type Artifact struct {
	Target string
	Path   string
}
