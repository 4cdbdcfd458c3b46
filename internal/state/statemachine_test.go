package state

import "testing"

func TestNextStateTransitions(t *testing.T) {
	cases := []struct {
		cur, evt string
		want     string
		wantErr  bool
	}{
		{StateOpen, EvtClose, StateClosed, false},
		{StateClosed, EvtSettle, StateSettled, false},
		{StateOpen, EvtSettle, StateOpen, true},
		{StateClosed, EvtClose, StateClosed, true},
		{StateSettled, EvtClose, StateSettled, true},
		{StateSettled, EvtSettle, StateSettled, true},
	}

	for _, c := range cases {
		got, err := NextState(c.cur, c.evt)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%s --%s--> expected error, got %s", c.cur, c.evt, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s --%s--> unexpected error: %v", c.cur, c.evt, err)
		}
		if got != c.want {
			t.Fatalf("%s --%s--> got %s, want %s", c.cur, c.evt, got, c.want)
		}
	}
}
