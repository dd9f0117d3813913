package forum

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind is the depth of a navigation state.
type Kind int

const (
	Home Kind = iota
	CategoryView
	TopicView
	ThreadDetail
)

func (k Kind) String() string {
	switch k {
	case Home:
		return "home"
	case CategoryView:
		return "category"
	case TopicView:
		return "topic"
	case ThreadDetail:
		return "thread"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// State is one position in the Home -> Category -> Topic -> Thread hierarchy.
// Fields deeper than Kind are empty.
type State struct {
	Kind       Kind   `json:"kind"`
	CategoryID string `json:"categoryId,omitempty"`
	Topic      string `json:"topic,omitempty"`
	ThreadID   string `json:"threadId,omitempty"`
}

func HomeState() State { return State{Kind: Home} }

func CategoryState(categoryID string) State {
	return State{Kind: CategoryView, CategoryID: categoryID}
}

func TopicState(categoryID, topic string) State {
	return State{Kind: TopicView, CategoryID: categoryID, Topic: topic}
}

// ThreadState may leave topic and category empty; they are filled in once
// the thread was fetched.
func ThreadState(threadID, topic, categoryID string) State {
	return State{Kind: ThreadDetail, ThreadID: threadID, Topic: topic, CategoryID: categoryID}
}

// Same reports whether s and o denote the same screen. A thread is
// identified by its id alone.
func (s State) Same(o State) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case Home:
		return true
	case CategoryView:
		return s.CategoryID == o.CategoryID
	case TopicView:
		return s.CategoryID == o.CategoryID && s.Topic == o.Topic
	}
	return s.ThreadID == o.ThreadID
}

// Path is the deep link of the state.
func (s State) Path() string {
	switch s.Kind {
	case CategoryView:
		return "/forum/category/" + url.PathEscape(s.CategoryID)
	case TopicView:
		return "/forum/category/" + url.PathEscape(s.CategoryID) + "/topic/" + url.PathEscape(s.Topic)
	case ThreadDetail:
		return "/forum/thread/" + url.PathEscape(s.ThreadID)
	}
	return "/forum"
}

// ParsePath is the inverse of Path.
func ParsePath(p string) (State, error) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 0 || parts[0] != "forum" {
		return State{}, fmt.Errorf("not a forum path: %q", p)
	}
	seg := make([]string, 0, len(parts)-1)
	for _, raw := range parts[1:] {
		v, err := url.PathUnescape(raw)
		if err != nil {
			return State{}, fmt.Errorf("bad forum path %q: %w", p, err)
		}
		seg = append(seg, v)
	}
	switch {
	case len(seg) == 0:
		return HomeState(), nil
	case len(seg) == 2 && seg[0] == "category":
		return CategoryState(seg[1]), nil
	case len(seg) == 4 && seg[0] == "category" && seg[2] == "topic":
		return TopicState(seg[1], seg[3]), nil
	case len(seg) == 2 && seg[0] == "thread":
		return ThreadState(seg[1], "", ""), nil
	}
	return State{}, fmt.Errorf("unknown forum path: %q", p)
}

// Crumb is one breadcrumb entry; Target is where it navigates back to.
type Crumb struct {
	Label  string `json:"label"`
	Target State  `json:"target"`
}

// RootLabel is the label of the first breadcrumb.
const RootLabel = "Forum"
