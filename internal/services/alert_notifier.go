package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// IntegrityAlert describes a failed chain scan
type IntegrityAlert struct {
	RunID           string    `json:"run_id"`
	CheckedCount    int       `json:"checked_count"`
	InvalidBlockIDs []string  `json:"invalid_block_ids"`
	BrokenChainAt   string    `json:"broken_chain_at,omitempty"`
	BrokenSequence  int64     `json:"broken_sequence,omitempty"`
	DetectedAt      time.Time `json:"detected_at"`
}

// Summary is a one-line description used in alert subjects and logs
func (a IntegrityAlert) Summary() string {
	parts := []string{fmt.Sprintf("run %s checked %d blocks", a.RunID, a.CheckedCount)}
	if len(a.InvalidBlockIDs) > 0 {
		parts = append(parts, fmt.Sprintf("%d invalid", len(a.InvalidBlockIDs)))
	}
	if a.BrokenChainAt != "" {
		parts = append(parts, fmt.Sprintf("chain broken at block %s (sequence %d)", a.BrokenChainAt, a.BrokenSequence))
	}
	return strings.Join(parts, ", ")
}

// AlertNotifier raises operator-visible alerts
type AlertNotifier interface {
	NotifyIntegrityFailure(ctx context.Context, alert IntegrityAlert) error
}

// MultiNotifier fans an alert out to every configured channel. A failing
// channel does not stop the others.
type MultiNotifier []AlertNotifier

func (m MultiNotifier) NotifyIntegrityFailure(ctx context.Context, alert IntegrityAlert) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyIntegrityFailure(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
