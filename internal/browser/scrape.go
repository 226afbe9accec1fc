package browser

import (
	"fmt"
	"strings"

	"github.com/signalnine/wptnightly/internal/result"
)

// ResultsSelector matches one row of the testharness results table.
const ResultsSelector = "#results > tbody > tr"

// cellsScript returns the inner HTML of every cell, row by row.
const cellsScript = `Array.from(document.querySelectorAll("#results > tbody > tr")).map(
  (tr) => Array.from(tr.getElementsByTagName("td")).map((td) => td.innerHTML))`

// traceMarker starts the stack trace block appended to failure messages.
const traceMarker = "<pre>"

// ParseRows turns scraped cells (status, test case, message) into rows.
// Unless relaxed, a single Timeout or Not Run row fails the whole page so the
// link is retried as a unit.
func ParseRows(suite string, cells [][]string, relaxed bool) ([]result.Row, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: empty results table", ErrStructural)
	}
	rows := make([]result.Row, 0, len(cells))
	for i, tds := range cells {
		if len(tds) < 2 {
			return nil, fmt.Errorf("%w: results row %d has %d cells", ErrStructural, i, len(tds))
		}
		status := result.Status(tds[0])
		testcase := tds[1]
		if !relaxed && !status.Terminal() {
			return nil, fmt.Errorf("%w: %s reported %q", ErrTimeout, testcase, status)
		}
		row := result.Row{Suite: suite, Case: testcase, Status: status}
		if status == result.StatusFail && len(tds) > 2 {
			row.Message = truncateMessage(tds[2])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// truncateMessage drops the stack trace and normalises line endings to
// "\n" so the message survives a CSV round trip unchanged.
func truncateMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	if i := strings.Index(msg, traceMarker); i >= 0 {
		return msg[:i]
	}
	return msg
}
