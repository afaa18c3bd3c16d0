// Package models defines the weekly dispatch receipt. The (domain, week
// ending) pair is unique in storage, which is what makes dispatch runs
// idempotent across restarts and overlapping schedulers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Receipt records one delivered weekly report.
type Receipt struct {
	ID         uuid.UUID `json:"id"`
	Domain     string    `json:"domain"`
	WeekEnding string    `json:"week_ending"`
	Recipients []string  `json:"recipients"`
	SentAt     time.Time `json:"sent_at"`
}

// Skip reasons reported by a dispatch run.
const (
	SkipAlreadySent  = "already_sent"
	SkipNoRecipients = "no_recipients"
)
