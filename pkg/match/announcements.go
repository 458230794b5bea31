package match

import "fmt"

// Announcement templates. These are the one documented exception to "no
// text generation" (spec §9): three canonical strings filled with team
// names, still submitted through the same TTS/mixer path as any other
// event.
const (
	welcomeTemplate = "Welcome to this match between %s and %s!"
	breakTemplate   = "That's the end of the first innings. %s will now bat against %s."
	endedTemplate   = "And that's the end of the match between %s and %s. Thanks for joining us!"
)

// WelcomeText renders the welcome announcement for the held teams.
func (s *State) WelcomeText() string {
	a, b := s.Teams()
	return fmt.Sprintf(welcomeTemplate, a, b)
}

// BreakText renders the innings-break announcement.
func (s *State) BreakText() string {
	a, b := s.Teams()
	return fmt.Sprintf(breakTemplate, b, a)
}

// EndedText renders the match-ended announcement.
func (s *State) EndedText() string {
	a, b := s.Teams()
	return fmt.Sprintf(endedTemplate, a, b)
}
