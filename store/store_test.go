package store

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusRequested, StatusAIRunning},
		{StatusAIRunning, StatusReviewing},
		{StatusAIRunning, StatusRequested}, // rollback on AI failure
		{StatusReviewing, StatusDone},
		{StatusReviewing, StatusRejected},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusRequested, StatusReviewing},
		{StatusRequested, StatusDone},
		{StatusAIRunning, StatusDone},
		{StatusDone, StatusRequested},
		{StatusRejected, StatusAIRunning},
		{StatusDone, StatusDone},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}
