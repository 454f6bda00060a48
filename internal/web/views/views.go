// Package views renders the server's HTML as templ components.
package views

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dayroster/internal/core"
)

const timeLayout = "2006-01-02 15:04"

// ErrorAlert is the fragment swapped in when an HTMX request fails.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert alert-error" role="alert"><p>%s</p>`, templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<small>%s</small></div>`, templ.EscapeString(code))
		return err
	})
}

// SyncPage lists recent sync runs with pager links.
func SyncPage(page *core.RunPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Roster sync</title></head><body><main><h1>Roster sync runs</h1>`); err != nil {
			return err
		}
		if err := RunsTable(page.Runs).Render(ctx, w); err != nil {
			return err
		}
		if err := pager(page).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// RunsTable renders one row per run.
func RunsTable(runs []core.SyncRun) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(runs) == 0 {
			_, err := io.WriteString(w, `<p class="empty">No sync runs yet.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table class="runs"><thead><tr><th>Started</th><th>Source</th><th>By</th><th>Status</th><th>Roster</th><th>Inserted</th><th>Updated</th><th>Discharged</th><th>Reactivated</th><th>Skipped</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, run := range runs {
			s := run.Summary
			_, err := fmt.Fprintf(w,
				`<tr class="status-%s" title="%s"><td><a href="/api/sync/runs/%s">%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
				templ.EscapeString(string(run.Status)),
				templ.EscapeString(run.ErrorMessage),
				templ.EscapeString(run.ID),
				run.StartedAt.In(time.Local).Format(timeLayout),
				templ.EscapeString(string(run.Source)),
				templ.EscapeString(run.TriggeredBy),
				templ.EscapeString(string(run.Status)),
				s.TotalInSource, s.Inserted, s.Updated, s.Discharged, s.Reactivated, s.Skipped,
			)
			if err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

func pager(page *core.RunPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if page.TotalPages <= 1 {
			return nil
		}
		if _, err := fmt.Fprintf(w, `<nav class="pager">Page %d of %d`, page.Page, page.TotalPages); err != nil {
			return err
		}
		if page.Page > 1 {
			if _, err := fmt.Fprintf(w, ` <a href="/sync?page=%d">Newer</a>`, page.Page-1); err != nil {
				return err
			}
		}
		if page.Page < page.TotalPages {
			if _, err := fmt.Fprintf(w, ` <a href="/sync?page=%d">Older</a>`, page.Page+1); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</nav>`)
		return err
	})
}
