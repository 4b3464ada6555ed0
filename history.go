package main

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// HistoryRecord is one delivery attempt as remembered by the ledger.
type HistoryRecord struct {
	TargetUsername string `json:"target_username"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
}

// Ledger is the append-only per-account record of every delivery attempt.
// Records are grouped by account identity in one JSON document; a corrupt or
// missing document degrades to empty history rather than failing callers.
type Ledger struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path, now: time.Now}
}

func (l *Ledger) load() map[string][]HistoryRecord {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return map[string][]HistoryRecord{}
	}

	history := map[string][]HistoryRecord{}
	if err := json.Unmarshal(data, &history); err != nil {
		return map[string][]HistoryRecord{}
	}
	return history
}

// Record appends one attempt under account and persists immediately.
func (l *Ledger) Record(account, target, status, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.load()
	history[account] = append(history[account], HistoryRecord{
		TargetUsername: target,
		Status:         status,
		Message:        message,
		Timestamp:      l.now().Format(time.RFC3339),
	})

	data, err := json.MarshalIndent(history, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}

// AlreadyDelivered reports whether target has a recorded successful delivery
// from account.
func (l *Ledger) AlreadyDelivered(account, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.load()[account] {
		if rec.TargetUsername == target && rec.Status == statusSent {
			return true
		}
	}
	return false
}

// CountSince counts successful deliveries for account at or after since.
func (l *Ledger) CountSince(account string, since time.Time) int {
	if account == "" {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, rec := range l.load()[account] {
		if rec.Status != statusSent {
			continue
		}
		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			continue
		}
		if !ts.Before(since) {
			count++
		}
	}
	return count
}

// TodayCount is the rolling daily counter shown on the control panel.
func (l *Ledger) TodayCount(account string) int {
	now := l.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return l.CountSince(account, midnight)
}
