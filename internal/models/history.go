package models

import (
	"slices"
	"time"

	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

type Source string

const (
	SourceSystem  Source = "system"
	SourceUser    Source = "user"
	SourceAdmin   Source = "admin"
	SourceWebhook Source = "webhook"
)

type HistoryEntry struct {
	Status    status.Status `json:"status"`
	Note      string        `json:"note,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Source    Source        `json:"source,omitempty"`
	Actor     string        `json:"actor,omitempty"`
}

// StatusHistory is append-only. Copies are taken by value when items split.
type StatusHistory []HistoryEntry

func (h StatusHistory) Clone() StatusHistory {
	if h == nil {
		return nil
	}
	return slices.Clone(h)
}

// Append returns a new history with e added. The receiver is not modified.
func (h StatusHistory) Append(e HistoryEntry) StatusHistory {
	out := make(StatusHistory, 0, len(h)+1)
	out = append(out, h...)
	return append(out, e)
}

func (h StatusHistory) Last() (HistoryEntry, bool) {
	if len(h) == 0 {
		return HistoryEntry{}, false
	}
	return h[len(h)-1], true
}

// LastOf returns the most recent entry recorded for s.
func (h StatusHistory) LastOf(s status.Status) (HistoryEntry, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Status == s {
			return h[i], true
		}
	}
	return HistoryEntry{}, false
}

// Monotonic reports whether timestamps never decrease along the history.
func (h StatusHistory) Monotonic() bool {
	for i := 1; i < len(h); i++ {
		if h[i].Timestamp.Before(h[i-1].Timestamp) {
			return false
		}
	}
	return true
}
