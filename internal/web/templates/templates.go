// Package templates renders the HTML views of the import API as templ
// components.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/a-h/templ"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
.alert{border:1px solid #e5a0a0;background:#fdf0f0;padding:.75rem 1rem;border-radius:4px}
.ok{color:#1d7a3a}.bad{color:#b42318}
table{border-collapse:collapse}td,th{padding:.25rem .75rem;border-bottom:1px solid #e4e7eb;text-align:left}
li{margin:.15rem 0}`

// ErrorAlert is the fragment shown for a failed request.
func ErrorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert" role="alert">`)
		fmt.Fprintf(&b, `<strong>%s</strong>`, templ.EscapeString(msg.Message))
		if msg.Action != "" {
			fmt.Fprintf(&b, `<p>%s</p>`, templ.EscapeString(msg.Action))
		}
		if msg.Code != "" {
			fmt.Fprintf(&b, `<small>Code: %s</small>`, templ.EscapeString(msg.Code))
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ResultPageData is what the import result page shows.
type ResultPageData struct {
	FileName string
	Result   *core.ImportResult
}

// ImportResultPage renders a complete page describing one import run.
func ImportResultPage(data ResultPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		r := data.Result
		var b strings.Builder

		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<title>Import result</title><style>` + pageStyle + `</style></head><body>`)

		title := "Import " + string(r.Kind)
		if data.FileName != "" {
			title += ": " + data.FileName
		}
		fmt.Fprintf(&b, `<h1>%s</h1>`, templ.EscapeString(title))
		fmt.Fprintf(&b, `<p class="%s">%s</p>`, statusClass(r), templ.EscapeString(statusText(r)))

		b.WriteString(`<table><tbody>`)
		row := func(label string, n int) {
			fmt.Fprintf(&b, `<tr><th>%s</th><td>%d</td></tr>`, label, n)
		}
		row("Processed", r.Summary.ProcessedCount)
		row("Succeeded", r.Summary.SuccessCount)
		row("Failed", r.Summary.ErrorCount)
		row("Warnings", r.Summary.WarningsCount)
		row("Securities created", len(r.CreatedSecurities))
		b.WriteString(`</tbody></table>`)

		if len(r.CreatedSecurities) > 0 {
			b.WriteString(`<h2>Created securities</h2><ul>`)
			for _, c := range r.CreatedSecurities {
				fmt.Fprintf(&b, `<li>%s (%s) from %s, %s</li>`,
					templ.EscapeString(c.Symbol), templ.EscapeString(c.Name),
					templ.EscapeString(c.Source), templ.EscapeString(c.Status))
			}
			b.WriteString(`</ul>`)
		}
		writeList(&b, "Errors", r.Errors)
		if r.HasMoreErrors {
			b.WriteString(`<p>More errors were omitted.</p>`)
		}
		writeList(&b, "Warnings", r.Warnings)

		fmt.Fprintf(&b, `<p><small>Import %s</small></p>`, r.ImportID)
		b.WriteString(`</body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, `<h2>%s</h2><ul>`, heading)
	for _, it := range items {
		fmt.Fprintf(b, `<li>%s</li>`, templ.EscapeString(it))
	}
	b.WriteString(`</ul>`)
}

func statusClass(r *core.ImportResult) string {
	if r.Success {
		return "ok"
	}
	return "bad"
}

func statusText(r *core.ImportResult) string {
	switch {
	case r.Success && r.DryRun:
		return "Dry run passed. Nothing was saved."
	case r.Success:
		return "Import committed."
	case r.DryRun:
		return "Dry run found errors. Nothing was saved."
	default:
		return "Import failed. Nothing was saved."
	}
}
