// Package match tracks the small amount of in-memory, non-durable state
// needed to drive lifecycle announcements: team names, innings phase, and
// the one-shot flags that prevent re-announcing a phase transition. This
// state is derived from upstream and intentionally does not survive
// restarts -- only the queue's checkpoint (pkg/state) is persisted.
package match

import "sync"

// Phase is the innings lifecycle.
type Phase string

const (
	PhaseToBegin      Phase = "ToBegin"
	PhaseInnings1     Phase = "Innings1"
	PhaseInningsBreak Phase = "InningsBreak"
	PhaseInnings2     Phase = "Innings2"
	PhaseEnded        Phase = "Ended"
)

// State holds the current match's lifecycle bookkeeping.
type State struct {
	mu sync.Mutex

	MatchID   string
	TeamA     string
	TeamB     string
	Phase     Phase
	Welcomed       bool
	BreakAnnounced bool
	EndedAnnounced bool
}

// New returns a fresh State for the given match, phase ToBegin, flags unset.
func New(matchID, teamA, teamB string) *State {
	return &State{
		MatchID: matchID,
		TeamA:   teamA,
		TeamB:   teamB,
		Phase:   PhaseToBegin,
	}
}

// ResetIfMatchChanged replaces the held state wholesale when the incoming
// event belongs to a different match, per spec §4.7. Returns true if a
// reset occurred.
func (s *State) ResetIfMatchChanged(matchID, teamA, teamB string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MatchID == matchID {
		return false
	}
	s.MatchID = matchID
	s.TeamA = teamA
	s.TeamB = teamB
	s.Phase = PhaseToBegin
	s.Welcomed = false
	s.BreakAnnounced = false
	s.EndedAnnounced = false
	return true
}

// SetPhase transitions the match to a new phase.
func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Phase = p
}

// CurrentPhase returns the current phase.
func (s *State) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Phase
}

// Teams returns the two team names.
func (s *State) Teams() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TeamA, s.TeamB
}

// NeedsWelcome reports whether the welcome announcement is still owed, and
// if so marks it handled (one-shot, edge-triggered like the Ducking
// Controller's duck/restore commands).
func (s *State) NeedsWelcome() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Welcomed {
		return false
	}
	s.Welcomed = true
	return true
}

// NeedsBreakAnnouncement reports (and claims) the innings-break announcement.
func (s *State) NeedsBreakAnnouncement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Phase != PhaseInningsBreak || s.BreakAnnounced {
		return false
	}
	s.BreakAnnounced = true
	return true
}

// NeedsEndAnnouncement reports (and claims) the match-ended announcement.
func (s *State) NeedsEndAnnouncement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Phase != PhaseEnded || s.EndedAnnounced {
		return false
	}
	s.EndedAnnounced = true
	return true
}
