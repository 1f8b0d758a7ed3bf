package notes_box

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// SortOrder is how a listing is presented. The stored collection itself is
// never reordered.
type SortOrder string

const (
	SortStored  SortOrder = ""
	SortByTime  SortOrder = "time"
	SortByTitle SortOrder = "title"
)

var ErrInvalidSortOrder = errors.New("invalid sort order")

func ParseSortOrder(s string) (SortOrder, error) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
	case SortStored, SortByTime, SortByTitle:
		return order, nil
	default:
		return SortStored, fmt.Errorf("%w: %q", ErrInvalidSortOrder, s)
	}
}

// SortNotes returns a sorted copy of notes. By time is newest first, by title
// is case insensitive with newest first among equal titles.
func SortNotes(notes []Note, order SortOrder) []Note {
	sorted := slices.Clone(notes)
	switch order {
	case SortByTime:
		slices.SortStableFunc(sorted, func(a, b Note) int {
			return cmp.Compare(b.Time, a.Time)
		})
	case SortByTitle:
		slices.SortStableFunc(sorted, func(a, b Note) int {
			if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
				return c
			}
			return cmp.Compare(b.Time, a.Time)
		})
	}
	return sorted
}
