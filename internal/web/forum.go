package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/forum"
	"github.com/sw33tLie/riderpoint/pkg/stats"
)

// defaultMaxAge is how long forum overview data is served from the shared
// caches when background refresh is disabled.
const defaultMaxAge = 30 * time.Second

// navigator builds a per-request navigator over the app's loaders, so all
// requests and the background refresh share one request sequence per cache.
func (a *App) navigator() *forum.Navigator {
	maxAge := a.cfg.Refresh
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return forum.New(a.backend,
		forum.WithLoaders(a.categoryLoader, a.threadLoader),
		forum.WithMaxAge(maxAge),
		forum.WithLogger(a.log),
	)
}

// enter navigates to target and reports the status to answer with. A failed
// fetch that still left data on screen is shown as stale with 200.
func enter(ctx context.Context, nav *forum.Navigator, target forum.State) (forum.View, int) {
	err := nav.Go(ctx, target)
	v := nav.View()
	switch {
	case err == nil:
		return v, http.StatusOK
	case errors.Is(err, catalog.ErrValidation):
		return v, http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return v, http.StatusNotFound
	}
	var ferr *fetch.Error
	if errors.As(err, &ferr) && errors.Is(ferr.Err, catalog.ErrNotFound) {
		return v, http.StatusNotFound
	}
	if hasData(v) {
		return v, http.StatusOK
	}
	return v, http.StatusBadGateway
}

func hasData(v forum.View) bool {
	return len(v.Categories) > 0 || v.Category != nil || len(v.Threads) > 0 || v.Thread != nil
}

func (a *App) forumHandler(w http.ResponseWriter, r *http.Request) {
	target, err := forum.ParsePath(r.URL.EscapedPath())
	if err != nil {
		http.NotFound(w, r)
		return
	}
	v, status := enter(r.Context(), a.navigator(), target)
	a.renderForum(w, r, status, v, "")
}

func (a *App) replyHandler(w http.ResponseWriter, r *http.Request) {
	nav := a.navigator()
	id := chi.URLParam(r, "id")
	v, status := enter(r.Context(), nav, forum.ThreadState(id, "", ""))
	if status != http.StatusOK || v.Thread == nil {
		a.renderForum(w, r, status, v, "")
		return
	}

	if _, err := nav.AppendReply(r.Context(), r.FormValue("user"), r.FormValue("text")); err != nil {
		a.renderForum(w, r, statusFor(err), nav.View(), err.Error())
		return
	}
	if isHTMX(r) {
		a.renderForum(w, r, http.StatusOK, nav.View(), "")
		return
	}
	http.Redirect(w, r, v.State.Path(), http.StatusSeeOther)
}

func (a *App) renderForum(w http.ResponseWriter, r *http.Request, status int, v forum.View, problem string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	content := ForumContent(v, problem)
	if isHTMX(r) {
		content.Render(w)
		return
	}
	PageLayout(forumTitle(v)+" - riderpoint", "/forum", content).Render(w)
}

func forumTitle(v forum.View) string {
	if len(v.Crumbs) == 0 {
		return forum.RootLabel
	}
	return v.Crumbs[len(v.Crumbs)-1].Label
}

// ForumContent renders one navigator view.
func ForumContent(v forum.View, problem string) g.Node {
	var body g.Node
	switch v.State.Kind {
	case forum.Home:
		body = categoryTable(v.Categories)
	case forum.CategoryView:
		body = topicTable(v)
	case forum.TopicView:
		body = threadList(v.Threads)
	case forum.ThreadDetail:
		body = threadDetail(v.Thread)
	}
	return Div(ID("forum-page"),
		breadcrumbs(v.Crumbs),
		staleBanner(v.Err),
		errorBanner(problem),
		body,
	)
}

func breadcrumbs(crumbs []forum.Crumb) g.Node {
	items := []g.Node{}
	for i, c := range crumbs {
		if i > 0 {
			items = append(items, Span(Class("text-slate-600"), g.Text("/")))
		}
		if i == len(crumbs)-1 {
			items = append(items, Span(Class("crumb text-slate-200"), g.Attr("aria-current", "page"), g.Text(c.Label)))
			continue
		}
		items = append(items, A(Class("crumb text-amber-400 hover:underline"), Href(c.Target.Path()), g.Text(c.Label)))
	}
	return Nav(ID("breadcrumbs"), Class("flex gap-2 text-sm mb-4"), g.Group(items))
}

func statCells(s stats.Scope[catalog.Thread]) g.Node {
	last := g.Text("-")
	if s.MostRecent != nil {
		last = A(Href(forum.ThreadState(s.MostRecent.ID, "", "").Path()), Class("hover:text-amber-400"), g.Text(s.MostRecent.Title))
	}
	return g.Group([]g.Node{
		Td(Class("threads px-3 py-2 text-right tabular-nums"), g.Textf("%d", s.ItemCount)),
		Td(Class("replies px-3 py-2 text-right tabular-nums"), g.Textf("%d", s.ReplyCount)),
		Td(Class("latest px-3 py-2"), last),
	})
}

func statHead(first string) g.Node {
	return THead(Tr(Class("text-left text-xs uppercase text-slate-500"),
		Th(Class("px-3 py-2"), g.Text(first)),
		Th(Class("px-3 py-2 text-right"), g.Text("Themen")),
		Th(Class("px-3 py-2 text-right"), g.Text("Antworten")),
		Th(Class("px-3 py-2"), g.Text("Neuester Beitrag")),
	))
}

func categoryTable(cats []forum.CategorySummary) g.Node {
	if len(cats) == 0 {
		return P(ID("empty"), Class("text-slate-400"), g.Text("Noch keine Kategorien."))
	}
	rows := []g.Node{}
	for _, c := range cats {
		rows = append(rows, Tr(Class("border-t border-slate-800"), g.Attr("data-id", c.Category.ID),
			Td(Class("px-3 py-2"),
				A(Href(forum.CategoryState(c.Category.ID).Path()), Class("font-semibold text-slate-100 hover:text-amber-400"), g.Text(c.Category.Title)),
				g.If(c.Category.Desc != "", Div(Class("text-xs text-slate-500"), g.Text(c.Category.Desc))),
			),
			statCells(c.Stats),
		))
	}
	return Table(ID("categories"), Class("w-full text-sm"), statHead("Kategorie"), TBody(g.Group(rows)))
}

func topicTable(v forum.View) g.Node {
	if v.Category == nil {
		return P(ID("empty"), Class("text-slate-400"), g.Text("Kategorie nicht gefunden."))
	}
	rows := []g.Node{}
	for _, t := range v.Topics {
		rows = append(rows, Tr(Class("border-t border-slate-800"), g.Attr("data-topic", t.Topic.Title),
			Td(Class("px-3 py-2"),
				A(Href(forum.TopicState(v.Category.ID, t.Topic.Title).Path()), Class("font-semibold text-slate-100 hover:text-amber-400"), g.Text(t.Topic.Title)),
				Div(Class("text-xs text-slate-500"), g.Text(t.Topic.Desc)),
			),
			statCells(t.Stats),
		))
	}
	return Div(
		H1(Class("text-2xl font-bold text-slate-100 mb-4"), g.Text(v.Category.Title)),
		Table(ID("topics"), Class("w-full text-sm"), statHead("Thema"), TBody(g.Group(rows))),
	)
}

func threadList(threads []catalog.Thread) g.Node {
	if len(threads) == 0 {
		return P(ID("empty"), Class("text-slate-400"), g.Text("Noch keine Beiträge in diesem Thema."))
	}
	items := []g.Node{}
	for _, t := range threads {
		items = append(items, Li(Class("border-t border-slate-800 py-3"), g.Attr("data-id", t.ID),
			A(Href(forum.ThreadState(t.ID, "", "").Path()), Class("font-semibold text-slate-100 hover:text-amber-400"), g.Text(t.Title)),
			Div(Class("text-xs text-slate-500"), g.Textf("%s · %s · %d Antworten", t.User, t.Date, t.Replies)),
		))
	}
	return Ul(ID("threads"), g.Group(items))
}

func threadDetail(t *catalog.Thread) g.Node {
	if t == nil {
		return P(ID("empty"), Class("text-slate-400"), g.Text("Beitrag nicht gefunden."))
	}
	replies := []g.Node{}
	for _, r := range t.RepliesList {
		replies = append(replies, Li(Class("reply border-t border-slate-800 py-3"),
			Div(Class("text-xs text-slate-500"), g.Textf("%s · %s", r.User, r.Date)),
			P(g.Text(r.Text)),
		))
	}
	path := forum.ThreadState(t.ID, "", "").Path()
	return Article(ID("thread"), g.Attr("data-id", t.ID),
		H1(Class("text-2xl font-bold text-slate-100"), g.Text(t.Title)),
		Div(Class("text-xs text-slate-500 mb-4"), g.Textf("%s · %s", t.User, t.Date)),
		P(Class("mb-6"), g.Text(t.Text)),
		H2(Class("text-sm uppercase text-slate-500"), Span(ID("reply-count"), g.Textf("%d", t.Replies)), g.Text(" Antworten")),
		Ul(ID("replies"), g.Group(replies)),
		Form(ID("reply-form"), Method("post"), Action(path+"/reply"), Class("mt-6 space-y-3"),
			g.Attr("hx-post", path+"/reply"),
			g.Attr("hx-target", "#forum-page"),
			g.Attr("hx-swap", "outerHTML"),
			Input(Type("text"), Name("user"), Placeholder("Name"), Required(),
				Class("w-full bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm")),
			Textarea(Name("text"), Placeholder("Deine Antwort"), Required(),
				Class("w-full bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm")),
			Button(Type("submit"), Class("bg-amber-500 text-slate-950 rounded-md px-4 py-2 font-semibold"), g.Text("Antworten")),
		),
	)
}
