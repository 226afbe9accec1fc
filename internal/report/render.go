package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatHTML     = "html"
)

const (
	SkipNotice   = "None new released build, skip this Nightly WPT Conformance Test."
	noChangeNote = "None new Pass & Regression Test Case of this test."
)

// Generate renders s to w in the given format. Unknown formats fall back to
// the console table.
func Generate(s *Summary, format string, w io.Writer) error {
	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(s))
		return err
	case FormatJSON:
		return WriteJSON(s, w)
	case FormatHTML:
		out, err := HTML(s)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return WriteTable(s, w)
	}
}

type section struct {
	title  string
	header table.Row
	rows   []table.Row
}

func (s *Summary) environmentRows() []table.Row {
	env := s.Environment
	pairs := [][2]string{
		{"hostname", env.Hostname},
		{"platform", env.Platform},
		{"testUrl", s.TestURL},
		{"browserVersion", s.CurrentVersion},
		{"testCommand", s.TestCommand},
		{"cpuName", env.CPU},
		{"gpuName", env.GPU.Name},
		{"gpuDriverVersion", env.GPU.DriverVersion},
		{"gpuDeviceId", env.GPU.DeviceID},
		{"gpuVendorId", env.GPU.VendorID},
		{"npuName", env.NPU.Name},
		{"npuDriverVersion", env.NPU.DriverVersion},
		{"npuDeviceId", env.NPU.DeviceID},
	}
	var rows []table.Row
	for _, p := range pairs {
		if p[1] != "" {
			rows = append(rows, table.Row{p[0], p[1]})
		}
	}
	return rows
}

func (s *Summary) sections() []section {
	out := []section{
		{title: "Test Environment Info", header: table.Row{"Category", "Details"}, rows: s.environmentRows()},
	}

	rates := section{title: "Pass Rate", header: table.Row{"Backend", "Pass Rate"}}
	for _, p := range s.PassRates {
		rates.rows = append(rates.rows, table.Row{p.Backend, p.String()})
	}
	out = append(out, rates)

	if len(s.NewPasses) > 0 {
		sec := section{title: "New Pass Test Case", header: table.Row{"Backend", "Test Suite", "Test Case"}}
		for _, c := range s.NewPasses {
			sec.rows = append(sec.rows, table.Row{c.Backend, c.Suite, c.Case})
		}
		out = append(out, sec)
	}
	if len(s.Regressions) > 0 {
		sec := section{title: "Regression Test Case", header: table.Row{"Backend", "Test Suite", "Test Case", "Message"}}
		for _, c := range s.Regressions {
			sec.rows = append(sec.rows, table.Row{c.Backend, c.Suite, c.Case, c.Message})
		}
		out = append(out, sec)
	}
	if len(s.NotRun) > 0 {
		sec := section{title: "Not Run Test Case", header: table.Row{"Test Suite", "Test URL"}}
		for _, n := range s.NotRun {
			for _, u := range n.URLs {
				sec.rows = append(sec.rows, table.Row{n.Suite, u})
			}
		}
		out = append(out, sec)
	}
	return out
}

// unchanged reports a compared run with nothing to call out.
func (s *Summary) unchanged() bool {
	return s.Compared() && len(s.NewPasses) == 0 && len(s.Regressions) == 0 && len(s.NotRun) == 0
}

func WriteTable(s *Summary, w io.Writer) error {
	if s.SameVersion {
		_, err := fmt.Fprintln(w, SkipNotice)
		return err
	}
	for _, sec := range s.sections() {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle(sec.title)
		t.AppendHeader(sec.header)
		t.AppendRows(sec.rows)
		t.Render()
	}
	if s.unchanged() {
		_, err := fmt.Fprintln(w, noChangeNote)
		return err
	}
	return nil
}

// Markdown renders the summary as GitHub flavoured markdown. Cell text is
// kept verbatim so HTML in failure messages survives into the mail body.
func Markdown(s *Summary) string {
	var b strings.Builder
	if s.SameVersion {
		b.WriteString(SkipNotice + "\n")
		return b.String()
	}
	b.WriteString("Nightly WPT Conformance Test completed. Please review the details below:\n")
	for _, sec := range s.sections() {
		fmt.Fprintf(&b, "\n**%s**\n\n", sec.title)
		t := table.NewWriter()
		t.AppendHeader(sec.header)
		for _, r := range sec.rows {
			t.AppendRow(flattenRow(r))
		}
		b.WriteString(t.RenderMarkdown())
		b.WriteString("\n")
	}
	if s.unchanged() {
		b.WriteString("\n" + noChangeNote + "\n")
	}
	return b.String()
}

func flattenRow(r table.Row) table.Row {
	out := make(table.Row, len(r))
	for i, v := range r {
		if str, ok := v.(string); ok {
			v = strings.ReplaceAll(strings.ReplaceAll(str, "\r\n", "\n"), "\n", "<br>")
		}
		out[i] = v
	}
	return out
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// HTML converts the markdown rendering to an HTML fragment.
func HTML(s *Summary) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(s)), &buf); err != nil {
		return "", fmt.Errorf("rendering html: %w", err)
	}
	return buf.String(), nil
}

func WriteJSON(s *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
