package facet

import (
	"golang.org/x/text/language"

	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

// Tour facet names, also used as fetch parameter and form field names.
const (
	TourRegion  = "region"
	TourCountry = "country"
	TourState   = "state"
)

// TourLevels is the region -> country -> state cascade.
func TourLevels() []Level[catalog.Tour] {
	return []Level[catalog.Tour]{
		{Name: TourRegion, Attr: func(t catalog.Tour) string { return t.Region }},
		{Name: TourCountry, Attr: func(t catalog.Tour) string { return t.Country }},
		{Name: TourState, Attr: func(t catalog.Tour) string { return t.State }},
	}
}

// TourSearchFields are the fields matched by the tour search box.
func TourSearchFields(t catalog.Tour) []string {
	return []string{t.Title, t.Desc}
}

// NewTourSelector wires the tour cascade with search and locale ordering.
func NewTourSelector(c *cache.Collection[catalog.Tour], policy Policy, locale language.Tag, opts ...Option[catalog.Tour]) *Selector[catalog.Tour] {
	base := []Option[catalog.Tour]{
		WithPolicy[catalog.Tour](policy),
		WithSearchFields[catalog.Tour](TourSearchFields),
		WithCollation[catalog.Tour](locale),
	}
	return New(c, TourLevels(), append(base, opts...)...)
}
