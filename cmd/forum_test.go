package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/forum"
	"github.com/sw33tLie/riderpoint/pkg/stats"
)

func TestPrintForumViewHome(t *testing.T) {
	recent := catalog.Thread{ID: "t2", Title: "Ölwechsel", CreatedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)}
	v := forum.View{
		State:  forum.HomeState(),
		Crumbs: []forum.Crumb{{Label: forum.RootLabel, Target: forum.HomeState()}},
		Categories: []forum.CategorySummary{
			{Category: catalog.Category{ID: "c1", Title: "Technik"}, Stats: stats.Scope[catalog.Thread]{ItemCount: 2, ReplyCount: 5, MostRecent: &recent}},
			{Category: catalog.Category{ID: "c2", Title: "Touren"}},
		},
	}

	var out bytes.Buffer
	printForumView(&out, v)
	got := out.String()

	if !strings.HasPrefix(got, "Forum\n") {
		t.Fatalf("expected breadcrumb line first, got %q", got)
	}
	for _, want := range []string{"Technik", "Ölwechsel", "Touren"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got %q", want, got)
		}
	}
	if strings.Contains(got, "Warning") {
		t.Fatalf("expected no stale warning, got %q", got)
	}
}

func TestPrintForumViewThreadWithStaleData(t *testing.T) {
	th := catalog.Thread{
		ID: "t1", Title: "Kettenspray", User: "Anna", Date: "2024-05-01", Text: "Welches?", Replies: 1,
		RepliesList: []catalog.Reply{{User: "Ben", Text: "Motul", Date: "2024-05-02"}},
	}
	v := forum.View{
		State: forum.ThreadState("t1", "BMW", "c1"),
		Crumbs: []forum.Crumb{
			{Label: forum.RootLabel}, {Label: "Technik"}, {Label: "BMW"}, {Label: "Kettenspray"},
		},
		Err:    errors.New("connection refused"),
		Thread: &th,
	}

	var out bytes.Buffer
	printForumView(&out, v)
	got := out.String()

	if !strings.Contains(got, "Forum > Technik > BMW > Kettenspray") {
		t.Fatalf("expected full breadcrumb, got %q", got)
	}
	if !strings.Contains(got, "connection refused") {
		t.Fatalf("expected stale warning, got %q", got)
	}
	if !strings.Contains(got, "1 replies") || !strings.Contains(got, "Motul") {
		t.Fatalf("expected replies to be listed, got %q", got)
	}
}

func TestLatestWithoutThreads(t *testing.T) {
	if got := latest(stats.Scope[catalog.Thread]{}); got != "-" {
		t.Fatalf("expected %q, got %q", "-", got)
	}
}
