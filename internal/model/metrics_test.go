package model

import (
	"testing"
	"time"
)

func TestParseTimeRange(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input   string
		want    TimeRange
		wantErr bool
	}{
		{"1h", Range1h, false},
		{"24h", Range24h, false},
		{"7d", Range7d, false},
		{"30d", Range30d, false},
		{"", Range24h, false}, // default
		{"12h", "", true},
		{"1H", "", true},
		{"forever", "", true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run("range "+tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimeRange(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseTimeRange(%q) expected error", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeRange(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseTimeRange(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestTimeRange_Duration(t *testing.T) {
	t.Parallel()

	if Range1h.Duration() != time.Hour {
		t.Error("1h duration wrong")
	}
	if Range7d.Duration() != 7*24*time.Hour {
		t.Error("7d duration wrong")
	}
	if Range24h.Hours() != 24 {
		t.Errorf("24h hours = %v, want 24", Range24h.Hours())
	}
}

func TestSyncLog_DurationMS(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(2500 * time.Millisecond)

	done := SyncLog{StartedAt: started, CompletedAt: &completed}
	d, ok := done.DurationMS()
	if !ok {
		t.Fatal("completed sync should report a duration")
	}
	if d != 2500 {
		t.Errorf("DurationMS() = %d, want 2500", d)
	}

	// In-flight syncs are excluded, not treated as zero-duration.
	running := SyncLog{StartedAt: started, Status: "running"}
	if _, ok := running.DurationMS(); ok {
		t.Error("in-flight sync must not report a duration")
	}
}
