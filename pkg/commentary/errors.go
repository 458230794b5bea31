package commentary

import "errors"

var (
	// ErrMalformedEvent is returned when an inbound payload is missing a
	// required field (event_id, match_id, or text). Malformed events are
	// dropped at admit and never committed -- there is no id to trust.
	ErrMalformedEvent = errors.New("commentary: malformed event payload")
)
