package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusDraft, StatusCancelled, true},
		{StatusSent, StatusPaid, true},
		{StatusSent, StatusCancelled, true},
		{StatusDraft, StatusPaid, false},
		{StatusPaid, StatusSent, false},
		{StatusPaid, StatusCancelled, false},
		{StatusPaid, StatusDraft, false},
		{StatusCancelled, StatusSent, false},
		{StatusCancelled, StatusPaid, false},
		{StatusSent, StatusDraft, false},
		{Status("UNKNOWN"), StatusSent, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for status, terminal := range map[Status]bool{
		StatusDraft:     false,
		StatusSent:      false,
		StatusPaid:      true,
		StatusCancelled: true,
	} {
		if got := IsTerminal(status); got != terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, terminal)
		}
	}
}
