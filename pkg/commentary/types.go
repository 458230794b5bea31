// Package commentary defines the event shape that flows from the upstream
// publisher through the queue to the orchestrator. Events are immutable once
// constructed; nothing in this package rewrites or infers commentary text.
package commentary

import "time"

// Intensity is the upstream-supplied excitement classification of an event.
type Intensity string

const (
	IntensityLow     Intensity = "low"
	IntensityNormal  Intensity = "normal"
	IntensityMedium  Intensity = "medium"
	IntensityHigh    Intensity = "high"
	IntensityExtreme Intensity = "extreme"
)

// Excitement returns the fixed 0-10 integer this intensity maps to. Unknown
// intensities map to the "normal" excitement level rather than panicking --
// upstream is the authority on text, not on whether its own classification
// values are well-formed.
func (i Intensity) Excitement() int {
	switch i {
	case IntensityLow:
		return 2
	case IntensityNormal:
		return 5
	case IntensityMedium:
		return 7
	case IntensityHigh:
		return 9
	case IntensityExtreme:
		return 10
	default:
		return 5
	}
}

// Priority levels. Smaller is higher priority.
type Priority int

const (
	PriorityAnnouncement Priority = 0
	PrioritySpecial      Priority = 1
	PriorityNormal       Priority = 2
)

// PriorityClass is the explicit wire-level classification field. When
// present it always wins over the legacy id-prefix inference -- see
// ClassifyPriority.
type PriorityClass string

const (
	ClassAnnouncement PriorityClass = "announcement"
	ClassSpecial      PriorityClass = "special"
	ClassNormal       PriorityClass = "normal"
)

// Event is one unit of commentary, admitted at most once into the queue.
type Event struct {
	EventID       string
	MatchID       string
	Text          string
	Intensity     Intensity
	Priority      Priority
	PriorityClass PriorityClass

	// Phase carries an innings-phase transition, when upstream's event marks
	// one; empty means no transition (see pkg/match.Phase).
	Phase string

	// Seq is assigned by the queue at admit time and is used only to break
	// ties between events of equal priority (FIFO within a priority level).
	Seq int64

	// CatchUp marks an event admitted during the Stream Client's catch-up
	// phase. It still passes through dedup, but is exempt from nothing else;
	// the field exists purely for observability.
	CatchUp bool

	AdmittedAt time.Time
}

// ClassifyPriority derives a Priority from the explicit priority_class field,
// falling back to the legacy ball_detection_id-style prefix inference only
// when priority_class is empty. See spec §9 / Open Questions: the explicit
// field always wins when both are present.
func ClassifyPriority(class PriorityClass, legacyID string) Priority {
	switch class {
	case ClassAnnouncement:
		return PriorityAnnouncement
	case ClassSpecial:
		return PrioritySpecial
	case ClassNormal:
		return PriorityNormal
	case "":
		return classifyLegacyID(legacyID)
	default:
		return PriorityNormal
	}
}

// classifyLegacyID implements the documented fallback mapping for
// interoperating with older publishers that never adopted priority_class:
// special_event_announcement_* -> 0, special_event_wicket_* -> 1, else 2.
func classifyLegacyID(id string) Priority {
	const (
		announcementPrefix = "special_event_announcement_"
		wicketPrefix        = "special_event_wicket_"
	)
	switch {
	case hasPrefix(id, announcementPrefix):
		return PriorityAnnouncement
	case hasPrefix(id, wicketPrefix):
		return PrioritySpecial
	default:
		return PriorityNormal
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
