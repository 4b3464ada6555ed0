package main

import (
	"math/rand"
	"sync"
	"time"
)

// TypingStyle selects the keystroke cadence for one whole message.
type TypingStyle string

const (
	typingNormal   TypingStyle = "normal"
	typingFast     TypingStyle = "fast"
	typingSlow     TypingStyle = "slow"
	typingVariable TypingStyle = "variable"
)

var typingStyles = []TypingStyle{typingNormal, typingFast, typingSlow, typingVariable}

// Pacer produces the randomized human-like timing for keystrokes and
// inter-message waits. Bursty-but-plausible pacing reads less like automation
// than a constant delay would.
// One Pacer is shared by the delivery engine and the dispatcher, and a
// superseded campaign may still be finishing its in-flight delivery while the
// next one starts, so mu guards rand and the break bookkeeping.
type Pacer struct {
	config *Config

	mu   sync.Mutex
	rand *rand.Rand

	sentAtLastBreak int
	breakEvery      int
}

func NewPacer(config *Config) *Pacer {
	p := &Pacer{
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.breakEvery = p.drawBreakEvery()
	return p
}

// drawBreakEvery picks the next long-break threshold. Callers hold p.mu,
// except NewPacer before the Pacer is shared.
func (p *Pacer) drawBreakEvery() int {
	min := p.config.BreakEveryMin
	max := p.config.BreakEveryMax
	if max <= min {
		return min
	}
	return min + p.rand.Intn(max-min+1)
}

// between draws a duration in [min, max). Callers must hold p.mu.
func (p *Pacer) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(p.rand.Int63n(int64(max-min)))
}

// PickStyle chooses a typing style, once per message.
func (p *Pacer) PickStyle() TypingStyle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return typingStyles[p.rand.Intn(len(typingStyles))]
}

// CharDelay returns the pause after one keystroke for the given style.
func (p *Pacer) CharDelay(style TypingStyle) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch style {
	case typingFast:
		return p.between(50*time.Millisecond, 120*time.Millisecond)
	case typingSlow:
		return p.between(150*time.Millisecond, 300*time.Millisecond)
	case typingVariable:
		return p.between(50*time.Millisecond, 350*time.Millisecond)
	default:
		return p.between(80*time.Millisecond, 200*time.Millisecond)
	}
}

// Hesitation returns a "thinking" pause, or zero most of the time. Each
// character has a small independent chance of one.
func (p *Pacer) Hesitation() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rand.Float64() < p.config.HesitationChance {
		return p.between(400*time.Millisecond, 1200*time.Millisecond)
	}
	return 0
}

// MessageDelay returns the wait before the next candidate. Ordinarily a
// jittered value in [base, base+jitter); every breakEvery successful sends it
// substitutes an extended rest instead and re-draws the next threshold.
func (p *Pacer) MessageDelay(base time.Duration, sentCount int) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sentCount > 0 && sentCount-p.sentAtLastBreak >= p.breakEvery {
		p.sentAtLastBreak = sentCount
		p.breakEvery = p.drawBreakEvery()

		min := time.Duration(p.config.LongBreakMinSeconds) * time.Second
		max := time.Duration(p.config.LongBreakMaxSeconds) * time.Second
		return p.between(min, max), true
	}

	jitter := time.Duration(p.config.MessageJitterSeconds) * time.Second
	return p.between(base, base+jitter), false
}

// humanDelay sleeps a random duration in [min, max), the small pause between
// consecutive UI interactions.
func (p *Pacer) humanDelay(min, max time.Duration) {
	p.mu.Lock()
	d := p.between(min, max)
	p.mu.Unlock()
	time.Sleep(d)
}
