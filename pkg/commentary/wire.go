package commentary

import "encoding/json"

// WirePayload mirrors the inbound event JSON shape (spec §6): the push
// channel and the missed-events endpoint both deliver this shape.
type WirePayload struct {
	EventID       string        `json:"event_id"`
	MatchID       string        `json:"match_id"`
	BatsmanName   string        `json:"batsman_name,omitempty"`
	Sentences     string        `json:"sentences"`
	Intensity     Intensity     `json:"intensity"`
	PriorityClass PriorityClass `json:"priority_class,omitempty"`

	// Phase carries an innings-phase transition ("Innings1", "InningsBreak",
	// "Innings2", "Ended") when upstream's own event marks one; empty means
	// no transition on this event. See pkg/match.Phase.
	Phase string `json:"phase,omitempty"`
}

// DecodeWire parses a single raw inbound frame into an Event. It never
// touches the text field beyond copying it -- the payload's text is
// authoritative and is not transformed.
func DecodeWire(raw []byte) (Event, error) {
	var p WirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, ErrMalformedEvent
	}
	return FromWire(p)
}

// FromWire validates and converts an already-decoded WirePayload into an
// Event. Required fields: event_id, match_id, sentences.
func FromWire(p WirePayload) (Event, error) {
	if p.EventID == "" || p.MatchID == "" || p.Sentences == "" {
		return Event{}, ErrMalformedEvent
	}
	intensity := p.Intensity
	if intensity == "" {
		intensity = IntensityNormal
	}
	return Event{
		EventID:       p.EventID,
		MatchID:       p.MatchID,
		Text:          p.Sentences,
		Intensity:     intensity,
		PriorityClass: p.PriorityClass,
		Priority:      ClassifyPriority(p.PriorityClass, p.EventID),
		Phase:         p.Phase,
	}, nil
}

// DecodeWireArray parses the missed-events endpoint's JSON array response
// (chronological order is preserved as returned).
func DecodeWireArray(raw []byte) ([]Event, error) {
	var payloads []WirePayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, ErrMalformedEvent
	}
	events := make([]Event, 0, len(payloads))
	for _, p := range payloads {
		e, err := FromWire(p)
		if err != nil {
			continue // malformed entries are dropped, not fatal to catch-up
		}
		events = append(events, e)
	}
	return events, nil
}
