package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/facet"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/rating"
	"github.com/sw33tLie/riderpoint/pkg/views"
)

var tourLevelNames = []string{facet.TourRegion, facet.TourCountry, facet.TourState}

var levelLabels = map[string]string{
	facet.TourRegion:  "Region",
	facet.TourCountry: "Land",
	facet.TourState:   "Bundesland",
}

// toursPage is the settled state of one /tours request.
type toursPage struct {
	Levels  []facet.LevelState
	Search  string
	List    views.Frame[catalog.Tour]
	Map     views.Frame[catalog.Tour]
	Center  catalog.LatLng
	Zoom    int
	Query   url.Values
	Notice  string
	Problem string
}

// buildTours replays the selections in q through a selector bound to a list
// and a map renderer. A child selection that is no longer an option of its
// parent is dropped, the same as the cascade reset.
func (a *App) buildTours(q url.Values) toursPage {
	sel := facet.NewTourSelector(a.tours, a.cfg.Policy, a.cfg.Locale)
	list, mapView := views.NewCapture[catalog.Tour](), views.NewCapture[catalog.Tour]()
	syncer := views.ForTours(list, mapView, a.log)
	syncer.Bind(sel)
	syncer.SetError(a.tourLoader.Err())

	p := toursPage{Query: url.Values{}}
	for i, name := range tourLevelNames {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			break
		}
		if err := sel.SelectAt(i, v); err != nil {
			if i == 0 {
				p.Notice = err.Error()
			}
			a.log.Debugf("Dropping selection %s=%q: %v", name, v, err)
			break
		}
		p.Query.Set(name, v)
	}
	if s := strings.TrimSpace(q.Get("search")); s != "" {
		sel.SetSearch(s)
		p.Search = s
		p.Query.Set("search", s)
	}
	if id := q.Get("active"); id != "" {
		// an id outside the subset leaves nothing active
		syncer.OnListItemActivated(id)
	}

	p.Levels = sel.Levels()
	p.List, p.Map = list.Last(), mapView.Last()
	p.Center, p.Zoom = mapView.View()
	return p
}

func (a *App) toursHandler(w http.ResponseWriter, r *http.Request) {
	ensure(r.Context(), a.tourLoader)
	a.renderTours(w, r, http.StatusOK, a.buildTours(r.URL.Query()))
}

func (a *App) renderTours(w http.ResponseWriter, r *http.Request, status int, p toursPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if isHTMX(r) {
		ToursContent(p).Render(w)
		return
	}
	PageLayout("Touren - riderpoint", "/tours", ToursContent(p)).Render(w)
}

func (a *App) voteHandler(w http.ResponseWriter, r *http.Request) {
	back, _ := url.ParseQuery(r.FormValue("back"))
	id := chi.URLParam(r, "id")

	err := func() error {
		raw, err := strconv.ParseFloat(r.FormValue("rating"), 64)
		if err != nil {
			return catalog.Invalidf("rating must be a number")
		}
		vote, err := rating.ParseVote(raw)
		if err != nil {
			return err
		}
		updated, err := a.backend.Vote(r.Context(), id, vote)
		if err != nil {
			return err
		}
		if !a.tours.Replace(updated) {
			a.tours.Prepend(updated)
		}
		return nil
	}()
	if err != nil {
		p := a.buildTours(back)
		p.Problem = err.Error()
		a.renderTours(w, r, statusFor(err), p)
		return
	}
	back.Set("active", id)
	a.redirect(w, r, "/tours?"+back.Encode())
}

func (a *App) createTourHandler(w http.ResponseWriter, r *http.Request) {
	t, err := tourFromForm(r)
	if err == nil {
		create := fetch.CreatorFunc[catalog.Tour](func(ctx context.Context, _ string, t catalog.Tour) (catalog.Tour, error) {
			return a.backend.CreateTour(ctx, t)
		})
		t, err = fetch.Create[catalog.Tour](r.Context(), a.tours, create, t)
	}
	if err != nil {
		p := a.buildTours(url.Values{})
		p.Problem = err.Error()
		a.renderTours(w, r, statusFor(err), p)
		return
	}
	q := url.Values{}
	if t.Region != "" {
		q.Set(facet.TourRegion, t.Region)
		q.Set(facet.TourCountry, t.Country)
		if t.State != "" {
			q.Set(facet.TourState, t.State)
		}
	}
	q.Set("active", t.ID)
	a.redirect(w, r, "/tours?"+q.Encode())
}

func tourFromForm(r *http.Request) (catalog.Tour, error) {
	t := catalog.Tour{
		Title:   r.FormValue("title"),
		Region:  strings.TrimSpace(r.FormValue("region")),
		Country: r.FormValue("country"),
		State:   strings.TrimSpace(r.FormValue("state")),
		Desc:    strings.TrimSpace(r.FormValue("desc")),
		Time:    strings.TrimSpace(r.FormValue("time")),
		Curves:  strings.TrimSpace(r.FormValue("curves")),
	}
	if km := r.FormValue("km"); km != "" {
		v, err := strconv.ParseFloat(km, 64)
		if err != nil || v < 0 {
			return t, catalog.Invalidf("km must be a positive number")
		}
		t.Km = v
	}
	lat, lng := r.FormValue("lat"), r.FormValue("lng")
	if lat != "" || lng != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		ln, err2 := strconv.ParseFloat(lng, 64)
		if err := errors.Join(err1, err2); err != nil {
			return t, catalog.Invalidf("coordinates must be numbers")
		}
		t.Coords = []float64{la, ln}
	}
	return t, nil
}

// redirect answers form posts; htmx requests get HX-Location instead of a 303.
func (a *App) redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		w.Header().Set("HX-Location", to)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrInvariant):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

// ToursContent is the swappable part of the tours page.
func ToursContent(p toursPage) g.Node {
	var body g.Node
	switch {
	case p.List.Prompt:
		body = P(ID("prompt"), Class("text-slate-400 py-8"), g.Text("Wähle eine Region, um Touren zu sehen."))
	case len(p.List.Items) == 0:
		body = P(ID("empty"), Class("text-slate-400 py-8"), g.Text("Keine Touren gefunden."))
	default:
		body = Div(Class("grid md:grid-cols-2 gap-6"),
			tourList(p),
			tourMap(p),
		)
	}
	return Div(ID("tours-page"),
		staleBanner(p.List.Err),
		errorBanner(p.Notice),
		errorBanner(p.Problem),
		filterForm(p),
		body,
		createTourForm(),
	)
}

func filterForm(p toursPage) g.Node {
	selects := []g.Node{}
	for _, lvl := range p.Levels {
		opts := []g.Node{Option(Value(""), g.Text("Alle"))}
		for _, o := range lvl.Options {
			opts = append(opts, Option(Value(o), g.If(o == lvl.Selection, Selected()), g.Text(o)))
		}
		selects = append(selects, Label(Class("flex flex-col text-xs uppercase text-slate-500"),
			g.Text(levelLabels[lvl.Name]),
			Select(Name(lvl.Name), ID("facet-"+lvl.Name),
				Class("mt-1 bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm text-slate-200"),
				g.If(!lvl.Enabled, Disabled()),
				g.Group(opts),
			),
		))
	}
	return Form(ID("tour-filter"), Method("get"), Action("/tours"),
		Class("flex flex-wrap gap-4 items-end mb-6"),
		g.Attr("hx-get", "/tours"),
		g.Attr("hx-target", "#tours-page"),
		g.Attr("hx-swap", "outerHTML"),
		g.Attr("hx-push-url", "true"),
		g.Attr("hx-trigger", "change, input delay:300ms from:input[name=search]"),
		g.Group(selects),
		Label(Class("flex flex-col text-xs uppercase text-slate-500"),
			g.Text("Suche"),
			Input(Type("search"), Name("search"), Value(p.Search), Placeholder("Titel oder Beschreibung"),
				Class("mt-1 bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm text-slate-200")),
		),
		A(ID("reset-filters"), Href("/tours"), Class("text-sm text-amber-400 hover:underline py-2"), g.Text("Filter zurücksetzen")),
	)
}

func tourLink(q url.Values, id string) string {
	c := url.Values{}
	for k, v := range q {
		c[k] = v
	}
	c.Set("active", id)
	return "/tours?" + c.Encode()
}

func tourList(p toursPage) g.Node {
	rows := []g.Node{}
	for _, t := range p.List.Items {
		active := t.ID == p.List.ActiveID
		cls := "rounded-lg border p-4 "
		if active {
			cls += "border-amber-400 bg-amber-400/5"
		} else {
			cls += "border-slate-800 bg-slate-900/40"
		}
		place := t.Country
		if t.State != "" {
			place += ", " + t.State
		}
		rows = append(rows, Li(Class(cls), g.Attr("data-id", t.ID), g.If(active, g.Attr("aria-current", "true")),
			A(Href(tourLink(p.Query, t.ID)), Class("font-semibold text-slate-100 hover:text-amber-400"),
				g.Attr("hx-get", tourLink(p.Query, t.ID)),
				g.Attr("hx-target", "#tours-page"),
				g.Attr("hx-swap", "outerHTML"),
				g.Text(t.Title)),
			Div(Class("text-xs text-slate-500 mt-1"),
				g.Textf("%s · %g km · %s", place, t.Km, t.Curves)),
			g.If(t.Desc != "", P(Class("text-sm mt-2"), g.Text(t.Desc))),
			Div(Class("flex items-center gap-3 mt-2"),
				Span(Class("rating text-amber-400 text-sm"), g.Textf("★ %.1f (%d)", t.Rating, t.Votes)),
				voteForm(p.Query, t.ID),
			),
		))
	}
	return Ul(ID("tour-list"), Class("space-y-3"), g.Group(rows))
}

func voteForm(q url.Values, id string) g.Node {
	buttons := []g.Node{}
	for v := rating.MinVote; v <= rating.MaxVote; v++ {
		buttons = append(buttons, Button(Type("submit"), Name("rating"), Value(strconv.Itoa(v)),
			Class("text-slate-500 hover:text-amber-400"), g.Attr("title", fmt.Sprintf("%d Sterne", v)), g.Text("★")))
	}
	return Form(Class("vote"), Method("post"), Action("/tours/"+url.PathEscape(id)+"/vote"),
		Input(Type("hidden"), Name("back"), Value(q.Encode())),
		g.Group(buttons),
	)
}

func tourMap(p toursPage) g.Node {
	markers := []g.Node{}
	for _, t := range p.Map.Items {
		pos, ok := t.Location()
		if !ok {
			continue
		}
		markers = append(markers, Li(
			g.Attr("data-id", t.ID),
			g.Attr("data-lat", strconv.FormatFloat(pos.Lat, 'f', -1, 64)),
			g.Attr("data-lng", strconv.FormatFloat(pos.Lng, 'f', -1, 64)),
			g.Attr("data-href", tourLink(p.Query, t.ID)),
			g.Attr("data-active", strconv.FormatBool(t.ID == p.Map.ActiveID)),
			g.Text(t.Title),
		))
	}
	return Div(
		Div(ID("map"), Class("h-96 rounded-lg border border-slate-800"),
			g.Attr("data-lat", strconv.FormatFloat(p.Center.Lat, 'f', -1, 64)),
			g.Attr("data-lng", strconv.FormatFloat(p.Center.Lng, 'f', -1, 64)),
			g.Attr("data-zoom", strconv.Itoa(p.Zoom)),
		),
		Ul(ID("map-markers"), Class("hidden"), g.Group(markers)),
	)
}

func createTourForm() g.Node {
	field := func(name, label, typ string) g.Node {
		return Label(Class("flex flex-col text-xs uppercase text-slate-500"),
			g.Text(label),
			Input(Type(typ), Name(name), g.If(typ == "number", g.Attr("step", "any")),
				Class("mt-1 bg-slate-800 border border-slate-700 rounded-md px-3 py-2 text-sm text-slate-200")),
		)
	}
	return Details(Class("mt-8"),
		Summary(Class("cursor-pointer text-sm text-amber-400"), g.Text("Neue Tour eintragen")),
		Form(ID("create-tour"), Method("post"), Action("/tours"), Class("grid md:grid-cols-3 gap-4 mt-4"),
			field("title", "Titel", "text"),
			field("region", "Region", "text"),
			field("country", "Land", "text"),
			field("state", "Bundesland", "text"),
			field("km", "Kilometer", "number"),
			field("curves", "Kurven", "text"),
			field("lat", "Breitengrad", "number"),
			field("lng", "Längengrad", "number"),
			field("desc", "Beschreibung", "text"),
			Button(Type("submit"), Class("bg-amber-500 text-slate-950 rounded-md px-4 py-2 font-semibold"), g.Text("Speichern")),
		),
	)
}
