package match

import "testing"

func TestNeedsWelcomeOneShot(t *testing.T) {
	s := New("m1", "India", "Australia")
	if !s.NeedsWelcome() {
		t.Fatal("expected welcome to be owed on fresh state")
	}
	if s.NeedsWelcome() {
		t.Fatal("expected welcome to be one-shot")
	}
}

func TestNeedsBreakAnnouncementRequiresPhase(t *testing.T) {
	s := New("m1", "India", "Australia")
	if s.NeedsBreakAnnouncement() {
		t.Fatal("should not announce break before InningsBreak phase")
	}
	s.SetPhase(PhaseInningsBreak)
	if !s.NeedsBreakAnnouncement() {
		t.Fatal("expected break announcement to be owed")
	}
	if s.NeedsBreakAnnouncement() {
		t.Fatal("expected break announcement to be one-shot")
	}
}

func TestResetIfMatchChangedClearsFlags(t *testing.T) {
	s := New("m1", "India", "Australia")
	s.NeedsWelcome()
	s.SetPhase(PhaseInningsBreak)
	s.NeedsBreakAnnouncement()

	changed := s.ResetIfMatchChanged("m2", "England", "NZ")
	if !changed {
		t.Fatal("expected reset to report a change")
	}
	if s.CurrentPhase() != PhaseToBegin {
		t.Fatalf("expected ToBegin after reset, got %s", s.CurrentPhase())
	}
	if !s.NeedsWelcome() {
		t.Fatal("expected welcome to be owed again after match change")
	}
}

func TestResetIfMatchChangedNoOpSameMatch(t *testing.T) {
	s := New("m1", "India", "Australia")
	s.NeedsWelcome()
	if s.ResetIfMatchChanged("m1", "India", "Australia") {
		t.Fatal("expected no reset for the same match id")
	}
	if s.NeedsWelcome() {
		t.Fatal("welcome flag should remain set for unchanged match")
	}
}

func TestAnnouncementText(t *testing.T) {
	s := New("m1", "India", "Australia")
	if got := s.WelcomeText(); got == "" {
		t.Fatal("expected non-empty welcome text")
	}
	if got := s.EndedText(); got == "" {
		t.Fatal("expected non-empty ended text")
	}
}
