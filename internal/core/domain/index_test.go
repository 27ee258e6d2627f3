package domain

import "testing"

func TestIndexCanTransition(t *testing.T) {
	cases := []struct {
		from IndexStatus
		to   IndexStatus
		want bool
	}{
		{IndexStatusPending, IndexStatusIndexing, true},
		{IndexStatusIndexing, IndexStatusCompleted, true},
		{IndexStatusPending, IndexStatusCompleted, true},
		{IndexStatusCompleted, IndexStatusUpdating, true},
		{IndexStatusUpdating, IndexStatusCompleted, true},
		{IndexStatusPending, IndexStatusFailed, true},
		{IndexStatusCompleted, IndexStatusFailed, true},
		{IndexStatusUpdating, IndexStatusFailed, true},

		{IndexStatusIndexing, IndexStatusPending, false},
		{IndexStatusCompleted, IndexStatusIndexing, false},
		{IndexStatusCompleted, IndexStatusPending, false},
		{IndexStatusUpdating, IndexStatusIndexing, false},
		{IndexStatusFailed, IndexStatusPending, false},
		{IndexStatusFailed, IndexStatusIndexing, false},
		{IndexStatusFailed, IndexStatusCompleted, false},
		{IndexStatusFailed, IndexStatusFailed, false},
	}

	for _, tc := range cases {
		idx := &Index{Status: tc.from}
		if got := idx.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestIndexIsQueryable(t *testing.T) {
	for _, status := range []IndexStatus{IndexStatusPending, IndexStatusIndexing, IndexStatusUpdating, IndexStatusFailed} {
		idx := &Index{Status: status}
		if idx.IsQueryable() {
			t.Errorf("%s index should not be queryable", status)
		}
	}
	idx := &Index{Status: IndexStatusCompleted}
	if !idx.IsQueryable() {
		t.Errorf("completed index should be queryable")
	}
}
