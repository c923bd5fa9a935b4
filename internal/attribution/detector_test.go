package attribution

import "testing"

func TestDetectUserEnvWins(t *testing.T) {
	t.Setenv("AGROQA_USER", "ravi")

	if got := detectUserUncached(); got != "ravi" {
		t.Errorf("expected ravi, got %s", got)
	}
}

func TestDetectUserFallback(t *testing.T) {
	t.Setenv("AGROQA_USER", "")

	got := detectUserUncached()
	if got == "" {
		t.Error("expected a non-empty user identifier")
	}
}

func TestDetectUserCached(t *testing.T) {
	first := DetectUser()
	second := DetectUser()
	if first != second {
		t.Errorf("cached result changed: %s then %s", first, second)
	}
}
