package region

// Status is a region's alert state as classified from one feed character.
type Status uint8

const (
	// StatusUnknown is any code outside the known alphabet.
	StatusUnknown Status = iota
	// StatusNone means no alert.
	StatusNone
	// StatusActive means a full-region alert.
	StatusActive
	// StatusPartial means an alert in part of the region.
	StatusPartial
)

const (
	CodeActive  = 'A'
	CodePartial = 'P'
	CodeNone    = 'N'
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusActive:
		return "active"
	case StatusPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// IsAlert reports whether s counts as an alert for transition purposes.
func (s Status) IsAlert() bool { return s == StatusActive || s == StatusPartial }

// Classify maps a feed character to a Status.
func Classify(code rune) Status {
	switch code {
	case CodeActive:
		return StatusActive
	case CodePartial:
		return StatusPartial
	case CodeNone:
		return StatusNone
	default:
		return StatusUnknown
	}
}

// Reading is a classified status together with the raw feed character.
type Reading struct {
	Code   rune
	Status Status
}

func Read(code rune) Reading { return Reading{Code: code, Status: Classify(code)} }
