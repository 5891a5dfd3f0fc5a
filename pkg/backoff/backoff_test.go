package backoff

import (
	"math"
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -3, want: time.Second},
		{attempt: 0, want: time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: 4, want: 16 * time.Second},
		{attempt: 5, want: 30 * time.Second},
		{attempt: 64, want: 30 * time.Second},
		{attempt: math.MaxInt, want: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayMatchesFormulaAndNeverDecreases(t *testing.T) {
	t.Parallel()

	prev := time.Duration(0)
	for attempt := 0; attempt <= 200; attempt++ {
		got := Delay(attempt)

		want := 30 * time.Second
		if attempt < 15 {
			if ms := 1000 * math.Pow(2, float64(attempt)); ms < 30000 {
				want = time.Duration(ms) * time.Millisecond
			}
		}
		if got != want {
			t.Fatalf("Delay(%d) = %v, want min(1000*2^n, 30000)ms = %v", attempt, got, want)
		}
		if got < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", attempt, got, prev)
		}
		if got <= 0 {
			t.Fatalf("Delay(%d) = %v, want positive", attempt, got)
		}
		prev = got
	}
}

func TestPolicyCustomBase(t *testing.T) {
	t.Parallel()

	p := Policy{Base: 250 * time.Millisecond, Cap: time.Second}
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestPolicyEdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"zero cap uses default", Policy{Base: time.Second}, 0, time.Second},
		{"zero cap caps at default", Policy{Base: time.Second}, 10, DefaultCap},
		{"negative cap uses default", Policy{Base: time.Second, Cap: -time.Second}, 10, DefaultCap},
		{"zero policy", Policy{}, 3, DefaultCap},
		{"base above cap", Policy{Base: time.Minute, Cap: time.Second}, 0, time.Second},
		{"huge cap", Policy{Base: time.Second, Cap: math.MaxInt64}, 62, math.MaxInt64},
		{"huge cap exact power", Policy{Base: time.Second, Cap: math.MaxInt64}, 10, 1024 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.policy.Delay(tt.attempt)
			if got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
			if got <= 0 {
				t.Errorf("Delay(%d) = %v, want positive", tt.attempt, got)
			}
		})
	}

	p := Policy{Base: time.Second, Cap: math.MaxInt64}
	prev := time.Duration(0)
	for attempt := 0; attempt <= 200; attempt++ {
		got := p.Delay(attempt)
		if got < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", attempt, got, prev)
		}
		prev = got
	}
}
