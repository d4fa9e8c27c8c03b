// Package templates renders the HTML pages of the admin UI as templ
// components.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// AdminInbox renders the pending inbox entries for administrators.
func AdminInbox(entries []core.AdminInboxEntry, admin string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.open("Inbox (" + strconv.Itoa(len(entries)) + ")")
		p.printf(`<header><h1>Inbox</h1><p class="who">%s &middot; %d pending</p></header>`,
			templ.EscapeString(admin), len(entries))

		if len(entries) == 0 {
			p.print(`<p class="empty">Nothing to review.</p>`)
			p.close()
			return p.err
		}

		p.print(`<table><thead><tr><th>ID</th><th>Kind</th><th>Station</th><th>Title</th><th>Photographer</th><th>Comment</th><th>Submitted</th><th></th></tr></thead><tbody>`)
		for _, e := range entries {
			row(p, e)
		}
		p.print(`</tbody></table>`)
		p.close()
		return p.err
	})
}

func row(p *printer, e core.AdminInboxEntry) {
	class := ""
	if e.Conflict {
		class = ` class="conflict"`
	}
	p.printf(`<tr id="entry-%d"%s>`, e.ID, class)
	p.printf(`<td>%d</td>`, e.ID)

	kind := e.Kind().String()
	if e.IsProblemReport() {
		kind += " (" + string(e.ProblemReportType) + ")"
	}
	p.printf(`<td>%s</td>`, templ.EscapeString(kind))

	station := ""
	if e.StationID != "" {
		station = e.CountryCode + ":" + e.StationID
	} else if e.Coordinates != nil {
		station = e.Coordinates.String()
	}
	p.printf(`<td>%s</td>`, templ.EscapeString(station))
	p.printf(`<td>%s</td>`, templ.EscapeString(e.Title))
	p.printf(`<td>%s</td>`, templ.EscapeString(e.PhotographerName))
	p.printf(`<td>%s</td>`, templ.EscapeString(e.Comment))
	p.printf(`<td><time datetime="%s">%s</time></td>`,
		e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"), e.CreatedAt.UTC().Format("2006-01-02 15:04"))

	p.print(`<td>`)
	if e.InboxURL != "" {
		label := "photo"
		if e.Processed {
			label = "processed photo"
		}
		p.printf(`<a href="%s" target="_blank" rel="noopener">%s</a>`,
			templ.EscapeString(string(templ.URL(e.InboxURL))), label)
	}
	if e.Conflict {
		p.print(` <span class="badge">possible duplicate</span>`)
	}
	p.print(`</td></tr>`)
}

// ErrorPage renders a failed request for browsers.
func ErrorPage(status int, msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.open("Error")
		p.printf(`<div class="error" role="alert"><h1>%d</h1><p>%s</p>`, status, templ.EscapeString(msg.Message))
		if msg.Action != "" {
			p.printf(`<p>%s</p>`, templ.EscapeString(msg.Action))
		}
		if msg.Code != "" {
			p.printf(`<p class="code">Code: %s</p>`, templ.EscapeString(msg.Code))
		}
		p.print(`</div>`)
		p.close()
		return p.err
	})
}

const style = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}` +
	`table{border-collapse:collapse;width:100%}th,td{border-bottom:1px solid #ddd;padding:.4rem;text-align:left;vertical-align:top}` +
	`tr.conflict{background:#fff4e5}.badge{background:#d9480f;color:#fff;border-radius:3px;padding:0 .3rem;font-size:.8em}` +
	`.who,.code{color:#666}.error{max-width:40rem}`

// printer keeps the first write error so the markup can be emitted without
// checking every call.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) print(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) open(title string) {
	p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title><style>%s</style></head><body>`,
		templ.EscapeString(title), style)
}

func (p *printer) close() {
	p.print(`</body></html>`)
}
