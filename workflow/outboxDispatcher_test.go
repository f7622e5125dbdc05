package workflow

import (
	"testing"
	"time"
)

func TestNextPublishBackoffDoublesAndCaps(t *testing.T) {
	initial := 5 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{5, 80 * time.Second},
		{12, 10 * time.Minute}, // capped
		{50, 10 * time.Minute},
	}
	for _, c := range cases {
		if got := nextPublishBackoff(initial, c.attempt); got != c.want {
			t.Errorf("attempt %d backoff = %s, want %s", c.attempt, got, c.want)
		}
	}
}
