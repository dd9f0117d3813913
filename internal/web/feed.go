package web

import (
	"context"
	"net/http"

	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/storage"
)

func (a *App) feedHandler(w http.ResponseWriter, r *http.Request) {
	ensure(r.Context(), a.postLoader)
	a.renderFeed(w, r, http.StatusOK, "")
}

func (a *App) createPostHandler(w http.ResponseWriter, r *http.Request) {
	create := fetch.CreatorFunc[catalog.Post](func(ctx context.Context, _ string, p catalog.Post) (catalog.Post, error) {
		return a.backend.CreatePost(ctx, p)
	})
	_, err := fetch.Create[catalog.Post](r.Context(), a.posts, create, catalog.Post{
		UserID:   r.FormValue("userId"),
		Content:  r.FormValue("content"),
		MediaURL: r.FormValue("mediaUrl"),
	})
	if err != nil {
		a.renderFeed(w, r, statusFor(err), err.Error())
		return
	}
	a.redirect(w, r, "/feed")
}

func (a *App) renderFeed(w http.ResponseWriter, r *http.Request, status int, problem string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	content := FeedContent(a.posts.All(), a.postLoader.Err(), problem)
	if isHTMX(r) {
		content.Render(w)
		return
	}
	PageLayout("Feed - riderpoint", "/feed", content).Render(w)
}

// FeedContent renders the posts newest first.
func FeedContent(posts []catalog.Post, stale error, problem string) g.Node {
	items := []g.Node{}
	for _, p := range posts {
		items = append(items, Li(Class("post rounded-lg border border-slate-800 bg-slate-900/40 p-4"), g.Attr("data-id", p.ID),
			Div(Class("text-xs text-slate-500"), g.Textf("%s · %s", p.UserID, p.CreatedAt.Format("02.01.2006 15:04"))),
			g.If(p.Content != "", P(Class("mt-2"), g.Text(p.Content))),
			media(p),
		))
	}
	var list g.Node = Ul(ID("posts"), Class("space-y-4"), g.Group(items))
	if len(posts) == 0 {
		list = P(ID("empty"), Class("text-slate-400"), g.Text("Noch keine Beiträge."))
	}
	return Div(ID("feed-page"),
		staleBanner(stale),
		errorBanner(problem),
		Form(ID("post-form"), Method("post"), Action("/feed"), Class("mb-6 space-y-3"),
			Input(Type("text"), Name("userId"), Placeholder("Name"),
				Class("w-full bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm")),
			Textarea(Name("content"), Placeholder("Was gibt's Neues?"),
				Class("w-full bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm")),
			Input(Type("url"), Name("mediaUrl"), Placeholder("Bild- oder Video-Link"),
				Class("w-full bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm")),
			Button(Type("submit"), Class("bg-amber-500 text-slate-950 rounded-md px-4 py-2 font-semibold"), g.Text("Posten")),
		),
		list,
	)
}

func media(p catalog.Post) g.Node {
	if p.MediaURL == "" {
		return nil
	}
	var el g.Node
	if p.MediaType == "video" {
		el = Video(Src(p.MediaURL), g.Attr("controls"), Class("mt-3 rounded-md max-h-96"))
	} else {
		el = Img(Src(p.MediaURL), Alt(p.Content), Class("mt-3 rounded-md max-h-96"))
	}
	source := g.Node(nil)
	if domain, ok := storage.MediaDomain(p.MediaURL); ok {
		source = Div(Class("media-source text-xs text-slate-500 mt-1"), g.Text("via "+domain))
	}
	return Figure(el, source)
}
