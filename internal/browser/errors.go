package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the test did not produce a terminal result in time.
	ErrTimeout = errors.New("timeout")
	// ErrStructural means the session or page failed for a reason other
	// than time, e.g. a crash or a missing result table.
	ErrStructural = errors.New("failed")
)

// TestError is returned by Provider.RunTest. Kind is ErrTimeout or
// ErrStructural; both match with errors.Is.
type TestError struct {
	URL  string
	Kind error
	Err  error
}

func (e *TestError) Error() string {
	return fmt.Sprintf("%s to run %s: %v", e.Kind, e.URL, e.Err)
}

func (e *TestError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsTimeout reports whether err is a timeout rather than a structural failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func classify(url string, err error) *TestError {
	kind := ErrStructural
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &TestError{URL: url, Kind: kind, Err: err}
}
