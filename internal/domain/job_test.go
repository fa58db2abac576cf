package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobStatusPending, JobStatusRunning, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusSucceeded, false},
		{JobStatusRunning, JobStatusSucceeded, true},
		{JobStatusRunning, JobStatusFailed, true},
		{JobStatusRunning, JobStatusPending, false},
		{JobStatusSucceeded, JobStatusRunning, false},
		{JobStatusSucceeded, JobStatusFailed, false},
		{JobStatusFailed, JobStatusRunning, false},
		{JobStatusFailed, JobStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTerminal(t *testing.T) {
	if JobStatusPending.Terminal() || JobStatusRunning.Terminal() {
		t.Fatalf("pending/running must not be terminal")
	}
	if !JobStatusSucceeded.Terminal() || !JobStatusFailed.Terminal() {
		t.Fatalf("succeeded/failed must be terminal")
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		done, total, want int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{1, 4, 25},
		{2, 3, 66},
		{3, 3, 100},
		{5, 4, 100},
	}
	for _, tc := range cases {
		j := &Job{DoneItems: tc.done, TotalItems: tc.total}
		if got := j.Progress(); got != tc.want {
			t.Errorf("progress(%d/%d) = %d, want %d", tc.done, tc.total, got, tc.want)
		}
	}
}
