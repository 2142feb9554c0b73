package notequery

import (
	"slices"
	"sort"
	"strings"

	"github.com/starford/studynotes/internal/models"
)

// Relevance tiers, best first.
const (
	TierExact = iota
	TierPrefix
	TierContains
	TierOther
)

// Tier classifies title against term, case-insensitively.
func Tier(title, term string) int {
	t := strings.ToLower(title)
	q := strings.ToLower(term)
	switch {
	case t == q:
		return TierExact
	case strings.HasPrefix(t, q):
		return TierPrefix
	case strings.Contains(t, q):
		return TierContains
	default:
		return TierOther
	}
}

// Rerank orders notes by relevance tier, keeping the incoming order inside a
// tier, and reverses the whole sequence when reverse is set. notes is
// sorted in place and returned.
func Rerank(notes []models.Note, term string, reverse bool) []models.Note {
	sort.SliceStable(notes, func(i, j int) bool {
		return Tier(notes[i].FileName, term) < Tier(notes[j].FileName, term)
	})
	if reverse {
		slices.Reverse(notes)
	}
	return notes
}

// Apply re-ranks notes when q asks for it and returns them.
func (q Query) Apply(notes []models.Note) []models.Note {
	if q.Rerank == "" {
		return notes
	}
	return Rerank(notes, q.Rerank, q.RerankReverse)
}
