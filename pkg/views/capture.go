package views

import (
	"sync"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

// Capture is a renderer that keeps the last frame it was given, for server
// side rendering where the page is built after the state settled.
type Capture[T catalog.Entity] struct {
	mu      sync.Mutex
	frame   Frame[T]
	center  catalog.LatLng
	zoom    int
	renders int
}

// NewCapture starts at the default map framing.
func NewCapture[T catalog.Entity]() *Capture[T] {
	return &Capture[T]{center: DefaultCenter, zoom: DefaultZoom}
}

func (c *Capture[T]) Render(f Frame[T]) {
	c.mu.Lock()
	c.frame = f
	c.renders++
	c.mu.Unlock()
}

func (c *Capture[T]) FlyTo(pos catalog.LatLng, zoom int) {
	c.mu.Lock()
	c.center, c.zoom = pos, zoom
	c.mu.Unlock()
}

// Last returns the last rendered frame.
func (c *Capture[T]) Last() Frame[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// View returns the current map center and zoom.
func (c *Capture[T]) View() (catalog.LatLng, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.center, c.zoom
}

// Renders counts Render calls.
func (c *Capture[T]) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}
