package main

import (
	"sync"
	"testing"
	"time"
)

func newTestPacer() *Pacer {
	return NewPacer(DefaultConfig())
}

func TestCharDelayRanges(t *testing.T) {
	pacer := newTestPacer()

	tests := []struct {
		style TypingStyle
		min   time.Duration
		max   time.Duration
	}{
		{typingNormal, 80 * time.Millisecond, 200 * time.Millisecond},
		{typingFast, 50 * time.Millisecond, 120 * time.Millisecond},
		{typingSlow, 150 * time.Millisecond, 300 * time.Millisecond},
		{typingVariable, 50 * time.Millisecond, 350 * time.Millisecond},
	}

	for _, test := range tests {
		for i := 0; i < 200; i++ {
			d := pacer.CharDelay(test.style)
			if d < test.min || d >= test.max {
				t.Fatalf("CharDelay(%s) = %v, expected [%v, %v)", test.style, d, test.min, test.max)
			}
		}
	}
}

func TestPickStyle(t *testing.T) {
	pacer := newTestPacer()

	seen := make(map[TypingStyle]bool)
	for i := 0; i < 500; i++ {
		style := pacer.PickStyle()
		seen[style] = true

		valid := false
		for _, s := range typingStyles {
			if style == s {
				valid = true
			}
		}
		if !valid {
			t.Fatalf("PickStyle returned unknown style %q", style)
		}
	}

	if len(seen) != len(typingStyles) {
		t.Errorf("500 draws produced %d distinct styles, expected all %d", len(seen), len(typingStyles))
	}
}

func TestHesitationBounds(t *testing.T) {
	pacer := newTestPacer()

	hits := 0
	for i := 0; i < 2000; i++ {
		d := pacer.Hesitation()
		if d == 0 {
			continue
		}
		hits++
		if d < 400*time.Millisecond || d >= 1200*time.Millisecond {
			t.Fatalf("Hesitation = %v, expected [400ms, 1200ms)", d)
		}
	}

	// 8% of 2000 is 160; allow generous slack for randomness.
	if hits < 60 || hits > 320 {
		t.Errorf("hesitation fired %d/2000 times, expected around 160", hits)
	}
}

func TestMessageDelayJitterRange(t *testing.T) {
	pacer := newTestPacer()
	base := 30 * time.Second
	jitter := time.Duration(pacer.config.MessageJitterSeconds) * time.Second

	for i := 0; i < 200; i++ {
		// sentCount 0 can never trigger a long break.
		d, long := pacer.MessageDelay(base, 0)
		if long {
			t.Fatal("long break with zero sends")
		}
		if d < base || d >= base+jitter {
			t.Fatalf("MessageDelay = %v, expected [%v, %v)", d, base, base+jitter)
		}
	}
}

func TestMessageDelayLongBreakCadence(t *testing.T) {
	config := DefaultConfig()
	pacer := NewPacer(config)

	minRest := time.Duration(config.LongBreakMinSeconds) * time.Second
	maxRest := time.Duration(config.LongBreakMaxSeconds) * time.Second

	breaks := 0
	lastBreakAt := 0
	for sent := 1; sent <= 100; sent++ {
		d, long := pacer.MessageDelay(time.Second, sent)
		if !long {
			continue
		}
		breaks++

		if d < minRest || d >= maxRest {
			t.Fatalf("long break = %v, expected [%v, %v)", d, minRest, maxRest)
		}

		gap := sent - lastBreakAt
		if gap < config.BreakEveryMin || gap > config.BreakEveryMax {
			t.Fatalf("long break after %d sends, expected every %d..%d", gap, config.BreakEveryMin, config.BreakEveryMax)
		}
		lastBreakAt = sent
	}

	// 100 sends at a 5..10 threshold must rest at least a handful of times.
	if breaks < 10 {
		t.Errorf("only %d long breaks over 100 sends", breaks)
	}
}

// A superseded campaign may still be finishing its in-flight delivery while
// the next campaign's worker starts, so both hit the shared Pacer at once.
// Run with -race to catch unsynchronized draws.
func TestPacerConcurrentUse(t *testing.T) {
	pacer := newTestPacer()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				style := pacer.PickStyle()
				if d := pacer.CharDelay(style); d <= 0 {
					t.Errorf("CharDelay(%s) = %v", style, d)
				}
				if d := pacer.Hesitation(); d < 0 {
					t.Errorf("Hesitation = %v", d)
				}
				if d, _ := pacer.MessageDelay(time.Second, i); d <= 0 {
					t.Errorf("MessageDelay = %v", d)
				}
			}
		}()
	}
	wg.Wait()
}

func TestBetweenDegenerateRange(t *testing.T) {
	pacer := newTestPacer()

	if d := pacer.between(time.Second, time.Second); d != time.Second {
		t.Errorf("between(1s, 1s) = %v, expected 1s", d)
	}
	if d := pacer.between(2*time.Second, time.Second); d != 2*time.Second {
		t.Errorf("between with inverted bounds = %v, expected min", d)
	}
}
