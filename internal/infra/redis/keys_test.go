package redis

import "testing"

func TestIdemKeys(t *testing.T) {
	if got := IdemResultKey("abc-123"); got != "bet:idem:result:abc-123" {
		t.Errorf("IdemResultKey = %q", got)
	}
	if got := IdemLockKey("abc-123"); got != "bet:idem:lock:abc-123" {
		t.Errorf("IdemLockKey = %q", got)
	}
}

func TestRoundResultKey(t *testing.T) {
	if got := RoundResultKey(42); got != "game:result:42" {
		t.Errorf("RoundResultKey(42) = %q", got)
	}
	if got := RoundResultKey(0); got != "game:result:0" {
		t.Errorf("RoundResultKey(0) = %q", got)
	}
}
