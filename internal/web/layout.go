package web

import (
	"fmt"
	"time"

	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

// PageLayout wraps content in the site chrome.
func PageLayout(title, currentPath string, content g.Node) g.Node {
	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		HTML(g.Attr("lang", "de"),
			Head(
				Meta(Charset("UTF-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1.0")),
				TitleEl(g.Text(title)),
				Link(Rel("stylesheet"), Href("https://unpkg.com/leaflet@1.9.4/dist/leaflet.css")),
				Script(Src("https://cdn.tailwindcss.com")),
				Script(Src("https://unpkg.com/htmx.org@2.0.4")),
				Script(Src("https://unpkg.com/leaflet@1.9.4/dist/leaflet.js")),
			),
			Body(Class("bg-slate-950 font-sans antialiased flex flex-col min-h-screen text-slate-300"),
				Navbar(currentPath),
				Main(ID("content"), Class("flex-grow container mx-auto px-4 py-6"), content),
				FooterEl(),
				Script(g.Raw(mapScript)),
			),
		),
	})
}

// Navbar links the three sections and highlights the current one.
func Navbar(currentPath string) g.Node {
	navLink := func(href, label string) g.Node {
		base := "inline-block px-3 py-2 rounded-md text-sm font-medium "
		if currentPath == href {
			base += "text-amber-400 bg-amber-400/10"
		} else {
			base += "text-slate-400 hover:text-white hover:bg-slate-800/50"
		}
		return A(Href(href), Class(base), g.Text(label))
	}
	return Nav(Class("bg-slate-900/80 text-white p-4 sticky top-0 z-50 border-b border-slate-700/50"),
		Div(Class("container mx-auto flex justify-between items-center"),
			A(Href("/tours"), Class("text-xl font-bold tracking-tight"), g.Text("riderpoint")),
			Div(Class("space-x-1"),
				navLink("/tours", "Touren"),
				navLink("/forum", "Forum"),
				navLink("/feed", "Feed"),
			),
		),
	)
}

func FooterEl() g.Node {
	return Footer(Class("bg-slate-900/50 text-slate-500 mt-auto border-t border-slate-800/50"),
		Div(Class("container mx-auto px-4 py-6 text-sm"),
			g.Text(fmt.Sprintf("© %d riderpoint", time.Now().Year())),
		),
	)
}

// staleBanner tells the user the data on screen may be outdated.
func staleBanner(err error) g.Node {
	if err == nil {
		return nil
	}
	return Div(ID("stale-banner"), Class("mb-4 rounded-md border border-amber-500/40 bg-amber-500/10 px-4 py-2 text-amber-300 text-sm"),
		g.Text("Daten konnten nicht aktualisiert werden, Anzeige ist evtl. veraltet: "+err.Error()),
	)
}

func errorBanner(msg string) g.Node {
	if msg == "" {
		return nil
	}
	return Div(ID("error-banner"), Class("mb-4 rounded-md border border-red-500/40 bg-red-500/10 px-4 py-2 text-red-300 text-sm"),
		g.Text(msg),
	)
}

// mapScript draws the markers rendered into #map-markers and re-runs after
// every htmx swap. Marker clicks activate the same item as list clicks.
const mapScript = `
function drawMap() {
	var el = document.getElementById('map');
	if (!el || typeof L === 'undefined') return;
	if (el._map) { el._map.remove(); }
	var map = L.map(el).setView([+el.dataset.lat, +el.dataset.lng], +el.dataset.zoom);
	el._map = map;
	L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {attribution: '&copy; OpenStreetMap'}).addTo(map);
	document.querySelectorAll('#map-markers li').forEach(function (m) {
		var marker = L.marker([+m.dataset.lat, +m.dataset.lng]).addTo(map);
		marker.on('click', function () { htmx.ajax('GET', m.dataset.href, {target: '#tours-page', swap: 'outerHTML'}); });
		if (m.dataset.active === 'true') { marker.bindPopup(m.textContent).openPopup(); }
	});
}
document.addEventListener('DOMContentLoaded', drawMap);
document.addEventListener('htmx:afterSwap', drawMap);
`
