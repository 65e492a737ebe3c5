// Package crawl drives cursor-based pagination over the search and comment
// endpoints.
package crawl

import (
	"context"

	"github.com/JakeFAU/douyin-harvester/internal/acquire"
	"github.com/JakeFAU/douyin-harvester/internal/payload"
)

// Sender performs one signed upstream request.
type Sender interface {
	Send(ctx context.Context, req acquire.Request) (payload.Node, error)
}

// State is the pagination state of one crawl pass.
type State struct {
	Cursor int64
	// Remaining is the page budget. It is decremented for every page
	// attempt, accepted or not.
	Remaining int
	// Finished never flips back to false within a pass.
	Finished bool
	Buffer   []payload.Node
}

// Active reports whether another page may be requested.
func (s *State) Active() bool {
	return !s.Finished && s.Remaining > 0
}

// Finish marks the pass done.
func (s *State) Finish() {
	s.Finished = true
}

// restart begins a new pass that keeps the remaining budget.
func (s *State) restart() {
	s.Cursor = 0
	s.Finished = false
}

// cursorOf reads the "cursor" field of a page. A present but non-numeric
// cursor resolves to 0.
func cursorOf(page payload.Node) (int64, bool) {
	c, ok := page.Field("cursor")
	if !ok {
		return 0, false
	}
	v, _ := c.Integer()
	return v, true
}
