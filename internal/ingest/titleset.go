package ingest

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Title is a retained title and the people credited on it as cast, in
// credits-file order. Duplicates are kept.
type Title struct {
	ID      string
	Persons []string
}

// TitleSet holds the retained titles in first-seen order.
type TitleSet struct {
	m *orderedmap.OrderedMap[string, *Title]
}

// NewTitleSet returns an empty set.
func NewTitleSet() *TitleSet {
	return &TitleSet{m: orderedmap.New[string, *Title]()}
}

// Retain adds id with an empty cast if it is not present. It reports whether
// the title was new.
func (s *TitleSet) Retain(id string) bool {
	if _, ok := s.m.Get(id); ok {
		return false
	}
	s.m.Set(id, &Title{ID: id})
	return true
}

// Has reports whether id was retained.
func (s *TitleSet) Has(id string) bool {
	_, ok := s.m.Get(id)
	return ok
}

// Get returns the retained title for id.
func (s *TitleSet) Get(id string) (*Title, bool) {
	return s.m.Get(id)
}

// AddCredit appends person to the cast of titleID. Credits on titles that
// were not retained are dropped and false is returned.
func (s *TitleSet) AddCredit(titleID, person string) bool {
	t, ok := s.m.Get(titleID)
	if !ok {
		return false
	}
	t.Persons = append(t.Persons, person)
	return true
}

// Len returns the number of retained titles.
func (s *TitleSet) Len() int { return s.m.Len() }

// Credits returns the total number of collected credits.
func (s *TitleSet) Credits() int {
	n := 0
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		n += len(pair.Value.Persons)
	}
	return n
}

// All yields each title ID with its cast in retention order.
func (s *TitleSet) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value.Persons) {
				return
			}
		}
	}
}

// Titles yields the retained titles in retention order.
func (s *TitleSet) Titles() iter.Seq[*Title] {
	return func(yield func(*Title) bool) {
		for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Value) {
				return
			}
		}
	}
}
