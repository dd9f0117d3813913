// Package views keeps a list view and a map view in lock-step: both always
// render the same subset with the same active item.
package views

import (
	"fmt"
	"sync"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/facet"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
)

// FlyToZoom is the zoom level used when the map centers on an activated item.
const FlyToZoom = 10

// DefaultCenter and DefaultZoom frame the map before anything is activated.
var (
	DefaultCenter = catalog.LatLng{Lat: 51.1657, Lng: 10.4515}
	DefaultZoom   = 6
)

// Frame is everything a renderer needs to draw one state.
type Frame[T catalog.Entity] struct {
	Items    []T
	ActiveID string
	// Prompt asks the user to pick a root facet instead of showing items.
	Prompt bool
	// Err is the last fetch failure; Items are stale when it is set.
	Err error
}

// IDs returns the ids of the frame items in order.
func (f Frame[T]) IDs() []string {
	out := make([]string, 0, len(f.Items))
	for _, it := range f.Items {
		out = append(out, it.EntityID())
	}
	return out
}

// Renderer draws frames. Render is called with the synchronizer lock held and
// must not call back into the synchronizer.
type Renderer[T catalog.Entity] interface {
	Render(f Frame[T])
}

// MapRenderer is a renderer that can center on a position.
type MapRenderer[T catalog.Entity] interface {
	Renderer[T]
	FlyTo(pos catalog.LatLng, zoom int)
}

// Locator returns the map position of an item, if it has one.
type Locator[T catalog.Entity] func(T) (catalog.LatLng, bool)

// Synchronizer owns the current subset and active id shown by both views.
type Synchronizer[T catalog.Entity] struct {
	mu      sync.Mutex
	list    Renderer[T]
	mapView MapRenderer[T]
	locate  Locator[T]
	log     fetch.Logger

	items  []T
	active string
	prompt bool
	err    error
}

// New binds a list and a map renderer. locate may be nil for items without
// positions.
func New[T catalog.Entity](list Renderer[T], mapView MapRenderer[T], locate Locator[T], log fetch.Logger) *Synchronizer[T] {
	if log == nil {
		log = fetch.NopLogger{}
	}
	return &Synchronizer[T]{list: list, mapView: mapView, locate: locate, log: log, items: []T{}}
}

// ForTours builds a synchronizer placing tours at their coords.
func ForTours(list Renderer[catalog.Tour], mapView MapRenderer[catalog.Tour], log fetch.Logger) *Synchronizer[catalog.Tour] {
	return New(list, mapView, catalog.Tour.Location, log)
}

// OnFilterChanged renders a new subset in both views. The active item is kept
// when it is still part of the subset.
func (s *Synchronizer[T]) OnFilterChanged(subset []T) {
	s.apply(facet.Result[T]{Items: subset})
}

// OnResult renders a facet result, including its prompt state.
func (s *Synchronizer[T]) OnResult(r facet.Result[T]) {
	s.apply(r)
}

func (s *Synchronizer[T]) apply(r facet.Result[T]) {
	items := append([]T{}, r.Items...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.prompt = r.Prompt
	if s.active != "" && s.indexOf(s.active) < 0 {
		s.active = ""
	}
	s.renderLocked()
}

// SetError shows or clears the stale-data indicator without touching the subset.
func (s *Synchronizer[T]) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.renderLocked()
}

// OnListItemActivated handles a click on a list row.
func (s *Synchronizer[T]) OnListItemActivated(id string) error {
	return s.activate(id)
}

// OnMapMarkerActivated handles a click on a map marker.
func (s *Synchronizer[T]) OnMapMarkerActivated(id string) error {
	return s.activate(id)
}

// activate marks id active in both views and centers the map on it. The
// subset never changes. An id outside the subset is a no-op.
func (s *Synchronizer[T]) activate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.log.Warnf("Ignoring activation of %q, not in the current subset", id)
		return fmt.Errorf("%w: item %q is not in the current subset", catalog.ErrInvariant, id)
	}
	s.active = id
	s.renderLocked()
	if s.locate == nil {
		return nil
	}
	if pos, ok := s.locate(s.items[i]); ok {
		s.mapView.FlyTo(pos, FlyToZoom)
	}
	return nil
}

// Active returns the active id, or "" when nothing is active.
func (s *Synchronizer[T]) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Frame returns the state last rendered.
func (s *Synchronizer[T]) Frame() Frame[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

// Bind renders every result the selector produces, starting with the current one.
func (s *Synchronizer[T]) Bind(sel *facet.Selector[T]) {
	sel.Subscribe(s.OnResult)
	s.OnResult(sel.Result())
}

func (s *Synchronizer[T]) frameLocked() Frame[T] {
	return Frame[T]{
		Items:    append([]T{}, s.items...),
		ActiveID: s.active,
		Prompt:   s.prompt,
		Err:      s.err,
	}
}

func (s *Synchronizer[T]) renderLocked() {
	f := s.frameLocked()
	s.list.Render(f)
	s.mapView.Render(f)
}

func (s *Synchronizer[T]) indexOf(id string) int {
	for i, it := range s.items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}
