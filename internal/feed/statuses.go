package feed

import "alertbot/internal/region"

// Statuses is one decoded feed payload.
type Statuses struct {
	codes []rune
}

// NewStatuses wraps a raw status string.
func NewStatuses(raw string) Statuses { return Statuses{codes: []rune(raw)} }

func (s Statuses) Len() int { return len(s.codes) }

// Code returns the raw character at idx.
func (s Statuses) Code(idx int) (rune, bool) {
	if idx < 0 || idx >= len(s.codes) {
		return 0, false
	}
	return s.codes[idx], true
}

// At classifies the character at idx. Indices past the end read as no alert.
func (s Statuses) At(idx int) region.Reading {
	code, ok := s.Code(idx)
	if !ok {
		return region.Read(region.CodeNone)
	}
	return region.Read(code)
}

func (s Statuses) String() string { return string(s.codes) }
