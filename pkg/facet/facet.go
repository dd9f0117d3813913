// Package facet implements a cascading selector over an ordered list of facet
// levels (for tours: region -> country -> state).
//
// Options of level k are always derived from data filtered by the
// selections of levels 0..k-1. Changing a level resets every level below it,
// so an option list can never outlive the parent selection it was built from.
//
// With a loader the cache may hold a remotely filtered subset. The selector
// then keeps the options of the levels that subset was fetched with and only
// derives the levels below them from the cache.
package facet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
)

// Unselected is the selection of a level that imposes no constraint.
const Unselected = ""

// Policy decides what the result looks like while the root level is unselected.
type Policy string

const (
	// ShowAll treats an unselected root like any other unselected level.
	ShowAll Policy = "show-all"
	// ShowPrompt suppresses the result and asks for a root selection first.
	ShowPrompt Policy = "show-prompt"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case ShowAll:
		return ShowAll, nil
	case ShowPrompt, "":
		return ShowPrompt, nil
	}
	return "", catalog.Invalidf("unknown empty root policy %q (want %s or %s)", s, ShowAll, ShowPrompt)
}

// Level defines one facet dimension.
type Level[T catalog.Entity] struct {
	Name string
	Attr func(T) string
}

// LevelState is the observable state of one level.
type LevelState struct {
	Name      string
	Selection string
	Options   []string
	Enabled   bool
}

// Selected reports whether the level holds a concrete value.
func (l LevelState) Selected() bool { return l.Selection != Unselected }

// Result is the filtered subset for the current selections.
type Result[T catalog.Entity] struct {
	Items []T
	// Prompt is set when the root is unselected under ShowPrompt.
	Prompt bool
}

// ParamsFunc builds fetch parameters from the current level states.
type ParamsFunc func(levels []LevelState, search string) fetch.Params

// Selector is the cascading facet state machine. All mutations are
// serialized. Listeners run after the mutation completed and see results in
// mutation order; a result overtaken by a newer one is not delivered.
// Listeners must not mutate the selector.
type Selector[T catalog.Entity] struct {
	mu       sync.Mutex
	cache    *cache.Collection[T]
	defs     []Level[T]
	levels   []LevelState
	search   string
	fields   func(T) []string
	policy   Policy
	collator *collate.Collator
	result   Result[T]

	loader *fetch.Loader[T]
	params ParamsFunc
	// pinned is the number of leading levels the cache was fetched with.
	// Their options are kept instead of re-derived from the cache.
	pinned int
	// selections counts selection changes; a fetch only applies to the
	// selection it was issued for.
	selections uint64
	// gen orders results for delivery.
	gen uint64

	listeners []func(Result[T])

	notifyMu  sync.Mutex
	delivered uint64
}

// Option customizes a Selector.
type Option[T catalog.Entity] func(*Selector[T])

// WithPolicy sets the empty root policy.
func WithPolicy[T catalog.Entity](p Policy) Option[T] {
	return func(s *Selector[T]) { s.policy = p }
}

// WithSearchFields enables free-text search over the returned fields.
func WithSearchFields[T catalog.Entity](fields func(T) []string) Option[T] {
	return func(s *Selector[T]) { s.fields = fields }
}

// WithCollation orders options for the given language.
func WithCollation[T catalog.Entity](tag language.Tag) Option[T] {
	return func(s *Selector[T]) { s.collator = collate.New(tag) }
}

// WithLoader lets SelectAndFetch refresh the cache for a new selection.
// Must be a loader writing to the selector's cache.
func WithLoader[T catalog.Entity](l *fetch.Loader[T], params ParamsFunc) Option[T] {
	return func(s *Selector[T]) {
		s.loader = l
		s.params = params
	}
}

// New builds a selector with every level unselected.
func New[T catalog.Entity](c *cache.Collection[T], levels []Level[T], opts ...Option[T]) *Selector[T] {
	s := &Selector[T]{
		cache:    c,
		defs:     levels,
		levels:   make([]LevelState, len(levels)),
		policy:   ShowPrompt,
		collator: collate.New(language.Und),
	}
	for i, l := range levels {
		s.levels[i] = LevelState{Name: l.Name}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.params == nil {
		s.params = SelectionParams
	}
	s.derive(s.cache.All())
	return s
}

// Subscribe registers fn to be called with every new result.
func (s *Selector[T]) Subscribe(fn func(Result[T])) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Policy returns the empty root policy in effect.
func (s *Selector[T]) Policy() Policy { return s.policy }

// SelectAt sets the selection of one level and cascades the reset to every
// level below it. An unknown option or a disabled level is a validation error
// and leaves the state untouched.
func (s *Selector[T]) SelectAt(index int, value string) error {
	_, _, err := s.selectAt(index, value)
	return err
}

// selectAt applies the selection and returns its number together with the
// levels it produced.
func (s *Selector[T]) selectAt(index int, value string) (uint64, []LevelState, error) {
	s.mu.Lock()
	if err := s.selectLocked(index, value); err != nil {
		s.mu.Unlock()
		return 0, nil, err
	}
	sel, levels := s.selections, s.levelsCopy()
	gen, res, listeners := s.snapshotLocked()
	s.mu.Unlock()

	if s.loader != nil {
		// any fetch issued for the previous selection is no longer of interest
		s.loader.Cancel()
	}
	s.emit(gen, res, listeners)
	return sel, levels, nil
}

func (s *Selector[T]) selectLocked(index int, value string) error {
	if index < 0 || index >= len(s.levels) {
		return catalog.Invalidf("facet level %d out of range [0,%d)", index, len(s.levels))
	}
	value = strings.TrimSpace(value)
	lvl := s.levels[index]
	if index > 0 && !lvl.Enabled && value != Unselected {
		return catalog.Invalidf("facet %q is disabled until %q is selected", lvl.Name, s.levels[index-1].Name)
	}
	if value != Unselected && !contains(lvl.Options, value) {
		return catalog.Invalidf("%q is not an option of facet %q", value, lvl.Name)
	}

	s.selections++
	s.levels[index].Selection = value
	for j := index + 1; j < len(s.levels); j++ {
		s.levels[j].Selection = Unselected
		s.levels[j].Enabled = false
		s.levels[j].Options = nil
	}

	if s.pinned > index+1 {
		// the cache was fetched for a selection this change replaces
		s.pinned = index + 1
	}
	items := s.cache.All()
	if value != Unselected && index+1 < len(s.levels) {
		s.levels[index+1].Options = s.optionsFor(items, index+1)
		s.levels[index+1].Enabled = true
	}
	s.result = s.compute(items)
	return nil
}

// SelectAndFetch selects like SelectAt, then refreshes the cache with data
// filtered by the selections of levels 0..index and derives the levels below
// index from it. The options of levels 0..index are kept, so a sibling value
// stays selectable after the cache was narrowed. When a newer selection was
// made while the fetch was in flight the response is dropped and
// fetch.ErrSuperseded is returned. A failed fetch keeps the stale state.
func (s *Selector[T]) SelectAndFetch(ctx context.Context, index int, value string) error {
	if s.loader == nil {
		return s.SelectAt(index, value)
	}
	sel, levels, err := s.selectAt(index, value)
	if err != nil {
		return err
	}
	// search narrows the result only, never the fetched data
	if err := s.loader.Load(ctx, s.params(levels, "")); err != nil {
		return err
	}

	s.mu.Lock()
	if s.selections != sel {
		s.mu.Unlock()
		return fetch.ErrSuperseded
	}
	s.pinned = index + 1
	if value == Unselected {
		s.pinned = index
	}
	s.derive(s.cache.All())
	gen, res, listeners := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(gen, res, listeners)
	return nil
}

// SetSearch updates the free-text filter.
func (s *Selector[T]) SetSearch(text string) {
	s.mu.Lock()
	s.search = strings.ToLower(strings.TrimSpace(text))
	s.result = s.compute(s.cache.All())
	gen, res, listeners := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(gen, res, listeners)
}

// Search returns the active free-text filter.
func (s *Selector[T]) Search() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

// Reset clears the search and every selection. Root options of a narrowed
// cache are kept.
func (s *Selector[T]) Reset() {
	s.mu.Lock()
	s.search = ""
	s.selections++
	for i := range s.levels {
		s.levels[i].Selection = Unselected
	}
	if s.pinned > 1 {
		s.pinned = 1
	}
	s.derive(s.cache.All())
	gen, res, listeners := s.snapshotLocked()
	s.mu.Unlock()
	if s.loader != nil {
		s.loader.Cancel()
	}
	s.emit(gen, res, listeners)
}

// Recompute re-derives options and the result from the current cache, e.g.
// after a refresh or after a new item was merged in. Selections that no
// longer exist are reset together with their descendants.
func (s *Selector[T]) Recompute() {
	s.mu.Lock()
	s.derive(s.cache.All())
	gen, res, listeners := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(gen, res, listeners)
}

// Unpin drops the options kept for a remotely filtered cache, e.g. after the
// caller reloaded the whole collection, and re-derives every level.
func (s *Selector[T]) Unpin() {
	s.mu.Lock()
	s.pinned = 0
	s.derive(s.cache.All())
	gen, res, listeners := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(gen, res, listeners)
}

// derive rebuilds every level top-down from items. Pinned levels keep their
// options.
func (s *Selector[T]) derive(items []T) {
	parentSelected := true
	for k := range s.levels {
		if !parentSelected {
			s.levels[k].Selection = Unselected
			s.levels[k].Enabled = false
			s.levels[k].Options = nil
			continue
		}
		s.levels[k].Enabled = true
		if k >= s.pinned {
			s.levels[k].Options = s.optionsFor(items, k)
		}
		if s.levels[k].Selected() && !contains(s.levels[k].Options, s.levels[k].Selection) {
			s.levels[k].Selection = Unselected
		}
		parentSelected = s.levels[k].Selected()
	}
	s.result = s.compute(items)
}

// optionsFor lists the distinct values of level k among items matching the
// selections of levels 0..k-1.
func (s *Selector[T]) optionsFor(items []T, k int) []string {
	seen := make(map[string]struct{})
	opts := []string{}
	for _, it := range items {
		if !s.matches(it, k) {
			continue
		}
		v := s.defs[k].Attr(it)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		opts = append(opts, v)
	}
	s.collator.SortStrings(opts)
	return opts
}

// matches reports whether it satisfies every selected level below depth.
func (s *Selector[T]) matches(it T, depth int) bool {
	for j := 0; j < depth; j++ {
		sel := s.levels[j].Selection
		if sel != Unselected && s.defs[j].Attr(it) != sel {
			return false
		}
	}
	return true
}

func (s *Selector[T]) compute(items []T) Result[T] {
	if len(s.levels) > 0 && !s.levels[0].Selected() && s.policy == ShowPrompt {
		return Result[T]{Items: []T{}, Prompt: true}
	}
	out := []T{}
	for _, it := range items {
		if s.matches(it, len(s.levels)) && s.matchesSearch(it) {
			out = append(out, it)
		}
	}
	return Result[T]{Items: out}
}

func (s *Selector[T]) matchesSearch(it T) bool {
	if s.search == "" || s.fields == nil {
		return true
	}
	for _, f := range s.fields(it) {
		if strings.Contains(strings.ToLower(f), s.search) {
			return true
		}
	}
	return false
}

// Levels returns a copy of every level state.
func (s *Selector[T]) Levels() []LevelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levelsCopy()
}

func (s *Selector[T]) levelsCopy() []LevelState {
	out := make([]LevelState, len(s.levels))
	for i, l := range s.levels {
		l.Options = append([]string(nil), l.Options...)
		out[i] = l
	}
	return out
}

// Options returns the options of one level.
func (s *Selector[T]) Options(index int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.levels) {
		return nil, fmt.Errorf("%w: facet level %d out of range", catalog.ErrValidation, index)
	}
	return append([]string{}, s.levels[index].Options...), nil
}

// Result returns the current filtered subset.
func (s *Selector[T]) Result() Result[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// SelectionParams is the default ParamsFunc: one parameter per selected level.
func SelectionParams(levels []LevelState, search string) fetch.Params {
	p := fetch.Params{}
	for _, l := range levels {
		if l.Selected() {
			p[l.Name] = l.Selection
		}
	}
	if search != "" {
		p["search"] = search
	}
	return p
}

// IsSuperseded reports whether err only means a newer selection won.
func IsSuperseded(err error) bool {
	return errors.Is(err, fetch.ErrSuperseded)
}

// snapshotLocked starts a new generation and returns what to deliver.
func (s *Selector[T]) snapshotLocked() (uint64, Result[T], []func(Result[T])) {
	s.gen++
	return s.gen, s.result, s.listeners
}

// emit delivers res unless a newer generation was delivered already.
func (s *Selector[T]) emit(gen uint64, res Result[T], listeners []func(Result[T])) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if gen <= s.delivered {
		return
	}
	s.delivered = gen
	for _, fn := range listeners {
		fn(res)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
