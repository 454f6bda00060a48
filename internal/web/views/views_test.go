package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dayroster/internal/core"
	"github.com/JonMunkholm/dayroster/internal/reconcile"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestErrorAlert_Escapes(t *testing.T) {
	out := render(t, ErrorAlert("<script>x</script>", "", "FILE003"))

	if strings.Contains(out, "<script>") {
		t.Errorf("message not escaped: %s", out)
	}
	if strings.Contains(out, "alert-action") {
		t.Error("empty action should not render")
	}
	if !strings.Contains(out, "FILE003") {
		t.Error("code missing")
	}
}

func TestSyncPage(t *testing.T) {
	page := &core.RunPage{
		Runs: []core.SyncRun{{
			ID:          "run-1",
			StartedAt:   time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC),
			Source:      core.SourceManual,
			TriggeredBy: "nurse <kim>",
			Status:      core.RunFailed,
			Summary:     reconcile.Summary{TotalInSource: 12, Inserted: 2},
		}},
		Total:      21,
		Page:       2,
		Limit:      20,
		TotalPages: 2,
	}

	out := render(t, SyncPage(page))

	for _, want := range []string{
		`href="/api/sync/runs/run-1"`,
		`class="status-failed"`,
		"nurse &lt;kim&gt;",
		"Page 2 of 2",
		`href="/sync?page=1"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(out, "page=3") {
		t.Error("last page should not link further")
	}
}

func TestSyncPage_Empty(t *testing.T) {
	out := render(t, SyncPage(&core.RunPage{Runs: []core.SyncRun{}, Page: 1}))
	if !strings.Contains(out, "No sync runs yet") {
		t.Errorf("empty page = %s", out)
	}
	if strings.Contains(out, "pager") {
		t.Error("single page should not render a pager")
	}
}
