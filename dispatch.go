package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Candidate is one (recipient, message) pair from a normalized upload.
type Candidate struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Result is one per-item outcome shown on the control panel.
type Result struct {
	Username string `json:"username"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// Snapshot is a point-in-time read of campaign progress.
type Snapshot struct {
	Current    int      `json:"current"`
	Total      int      `json:"total"`
	Messages   []Result `json:"messages"`
	TodayCount int      `json:"today_count"`
}

const systemUsername = "SYSTEM"

// Campaign is the state of one bulk dispatch run. The worker goroutine is its
// sole writer; polling callers read through the mutex.
type Campaign struct {
	ID string

	mu       sync.Mutex
	current  int
	total    int
	results  []Result
	original []Candidate
	stopped  bool
	stopCh   chan struct{}
}

func newCampaign() *Campaign {
	return &Campaign{
		ID:     uuid.NewString(),
		stopCh: make(chan struct{}),
	}
}

func (c *Campaign) appendResult(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *Campaign) setCurrent(n int) {
	c.mu.Lock()
	c.current = n
	c.mu.Unlock()
}

func (c *Campaign) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// stop raises the cancel flag. The synthetic SYSTEM result is appended only
// for operator-initiated stops, and only once.
func (c *Campaign) stop(addSystemResult bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)

	if addSystemResult {
		c.results = append(c.results, Result{
			Username: systemUsername,
			Status:   statusStopped,
		})
	}
}

// sleep waits for d or until the campaign is cancelled, whichever comes
// first. Returns false when cancelled.
func (c *Campaign) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.stopCh:
		return false
	}
}

func (c *Campaign) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]Result, len(c.results))
	copy(messages, c.results)

	return Snapshot{
		Current:  c.current,
		Total:    c.total,
		Messages: messages,
	}
}

// remaining returns the original candidates not yet successfully handled, in
// input order, excluding synthetic SYSTEM rows.
func (c *Campaign) remaining() []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	processed := make(map[string]struct{})
	for _, r := range c.results {
		if r.Status == statusSent || r.Status == statusAlreadyMessaged {
			processed[r.Username] = struct{}{}
		}
	}

	var out []Candidate
	for _, cand := range c.original {
		if cand.Username == systemUsername {
			continue
		}
		if _, ok := processed[cand.Username]; ok {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// SendFunc performs one delivery attempt and returns an outcome string. In
// production this is Engine.SendDM; tests substitute fakes.
type SendFunc func(target, message string, followFirst bool) string

// Dispatcher turns a candidate list into a throttled, cancellable,
// deduplicated campaign run by a single background worker.
type Dispatcher struct {
	config *Config
	ledger *Ledger
	store  *SessionStore
	pacer  *Pacer
	log    *zap.Logger
	send   SendFunc

	mu       sync.Mutex
	campaign *Campaign
}

func NewDispatcher(config *Config, ledger *Ledger, store *SessionStore, pacer *Pacer, log *zap.Logger, send SendFunc) *Dispatcher {
	return &Dispatcher{
		config: config,
		ledger: ledger,
		store:  store,
		pacer:  pacer,
		log:    log,
		send:   send,
	}
}

// Start resets campaign state, partitions candidates against the ledger and
// hands the rest to a background worker. cleanup runs on every worker exit
// path and releases temporary upload artifacts.
func (d *Dispatcher) Start(candidates []Candidate, messageDelay time.Duration, limit int, followFirst bool, cleanup func()) (*Campaign, error) {
	account, err := d.store.AccountID()
	if err != nil {
		return nil, err
	}

	campaign := newCampaign()

	var toSend []Candidate
	for _, cand := range candidates {
		campaign.original = append(campaign.original, cand)
		if d.ledger.AlreadyDelivered(account, cand.Username) {
			campaign.results = append(campaign.results, Result{
				Username: cand.Username,
				Status:   statusAlreadyMessaged,
				Message:  cand.Message,
			})
			metricSkipped.Inc()
		} else {
			toSend = append(toSend, cand)
		}
	}

	campaign.total = len(toSend)
	if limit < campaign.total {
		campaign.total = limit
	}

	d.mu.Lock()
	if prior := d.campaign; prior != nil {
		// A new dispatch supersedes any prior campaign.
		prior.stop(false)
	}
	d.campaign = campaign
	d.mu.Unlock()

	metricCampaigns.Inc()
	metricProgress.Set(0)

	d.log.Info("campaign started",
		zap.String("campaign", campaign.ID),
		zap.String("account", account),
		zap.Int("candidates", len(candidates)),
		zap.Int("to_send", len(toSend)),
		zap.Int("total", campaign.total))

	go d.run(campaign, account, toSend, messageDelay, limit, followFirst, cleanup)
	return campaign, nil
}

func (d *Dispatcher) run(c *Campaign, account string, toSend []Candidate, messageDelay time.Duration, limit int, followFirst bool, cleanup func()) {
	if cleanup != nil {
		defer cleanup()
	}

	sent := 0
	for _, cand := range toSend {
		if c.isStopped() {
			d.log.Info("stop signal received, terminating worker", zap.String("campaign", c.ID))
			return
		}
		if sent >= limit {
			break
		}

		status := d.send(cand.Username, cand.Message, followFirst)

		if status == statusSent {
			if err := d.ledger.Record(account, cand.Username, status, cand.Message); err != nil {
				d.log.Warn("failed to persist history record",
					zap.String("target", cand.Username), zap.Error(err))
			}
			sent++
			c.setCurrent(sent)
			metricSent.Inc()
			metricProgress.Set(float64(sent))
		} else if status == statusSkippedSession {
			metricSkipped.Inc()
		} else {
			metricFailed.Inc()
		}

		c.appendResult(Result{
			Username: cand.Username,
			Status:   status,
			Message:  cand.Message,
		})

		if c.isStopped() {
			d.log.Info("stop signal received, terminating worker", zap.String("campaign", c.ID))
			return
		}

		wait, longBreak := d.pacer.MessageDelay(messageDelay, sent)
		if longBreak {
			d.log.Info("taking an extended rest", zap.Duration("rest", wait))
		} else {
			d.log.Debug("inter-message delay", zap.Duration("delay", wait))
		}
		if !c.sleep(wait) {
			return
		}
	}

	d.log.Info("campaign finished",
		zap.String("campaign", c.ID), zap.Int("sent", sent))
}

// Stop cancels the live campaign. The worker observes the flag at the top of
// its next iteration and at the pacing wait, so it terminates within one
// in-flight delivery.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	campaign := d.campaign
	d.mu.Unlock()

	if campaign == nil {
		return
	}
	campaign.stop(true)
	d.log.Info("campaign stop requested", zap.String("campaign", campaign.ID))
}

// Reset discards campaign state so the panel starts from a clean slate.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	if d.campaign != nil {
		d.campaign.stop(false)
	}
	d.campaign = nil
	d.mu.Unlock()
}

// Snapshot is a pure read of campaign progress plus the account's rolling
// daily counter. It never blocks on the worker.
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	campaign := d.campaign
	d.mu.Unlock()

	snap := Snapshot{Messages: []Result{}}
	if campaign != nil {
		snap = campaign.snapshot()
		if snap.Messages == nil {
			snap.Messages = []Result{}
		}
	}

	if account, err := d.store.AccountID(); err == nil {
		snap.TodayCount = d.ledger.TodayCount(account)
	}
	return snap
}

// Remaining lists the candidates an operator would want to re-submit.
func (d *Dispatcher) Remaining() []Candidate {
	d.mu.Lock()
	campaign := d.campaign
	d.mu.Unlock()

	if campaign == nil {
		return nil
	}
	return campaign.remaining()
}
