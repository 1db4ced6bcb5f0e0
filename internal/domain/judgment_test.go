package domain

import "testing"

func TestSafetyLevelOrdering(t *testing.T) {
	if !(SafetyDanger.Rank() > SafetyCaution.Rank() && SafetyCaution.Rank() > SafetySafe.Rank()) {
		t.Fatalf("severity ordering broken: danger=%d caution=%d safe=%d",
			SafetyDanger.Rank(), SafetyCaution.Rank(), SafetySafe.Rank())
	}
}

func TestSafetyLevel_UnknownRanksAsDanger(t *testing.T) {
	unknown := SafetyLevel("garbled")
	if unknown.Rank() != SafetyDanger.Rank() {
		t.Errorf("unknown level ranked %d, want danger rank %d", unknown.Rank(), SafetyDanger.Rank())
	}
	if unknown.Valid() {
		t.Errorf("unknown level reported valid")
	}
}

func TestMaxSafetyLevel(t *testing.T) {
	tests := []struct {
		a, b, want SafetyLevel
	}{
		{SafetySafe, SafetySafe, SafetySafe},
		{SafetySafe, SafetyCaution, SafetyCaution},
		{SafetyCaution, SafetySafe, SafetyCaution},
		{SafetyCaution, SafetyDanger, SafetyDanger},
		{SafetyDanger, SafetySafe, SafetyDanger},
	}
	for _, tt := range tests {
		if got := MaxSafetyLevel(tt.a, tt.b); got != tt.want {
			t.Errorf("MaxSafetyLevel(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEscalate(t *testing.T) {
	if SafetySafe.Escalate() != SafetyCaution {
		t.Errorf("safe should escalate to caution")
	}
	if SafetyCaution.Escalate() != SafetyDanger {
		t.Errorf("caution should escalate to danger")
	}
	if SafetyDanger.Escalate() != SafetyDanger {
		t.Errorf("danger should stay danger")
	}
}
