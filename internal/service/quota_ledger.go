package service

import (
	"github.com/noah-isme/meal-queue-api/internal/models"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

// Submission is one attendance save: the headcount triple plus the
// reinforcements consumed in this session.
type Submission struct {
	Headcount          models.Headcount
	ReinforcementDelta int
}

// Allocation is the outcome of an accepted submission.
type Allocation struct {
	Headcount          models.Headcount `json:"headcount"`
	ReinforcementsUsed int              `json:"reinforcementsUsed"`
	Available          int              `json:"available"`
}

// QuotaLedger validates reinforcement consumption against a group's daily
// ceiling. It holds no state; callers own deduplication of submissions.
type QuotaLedger struct{}

// Available reports the remaining quota, clamped at zero.
func (QuotaLedger) Available(group models.Group, existingUsed int) int {
	available := group.MaxReinforcements - existingUsed
	if available < 0 {
		return 0
	}
	return available
}

// Allocate returns the new cumulative total when requestedDelta fits in the remaining quota.
func (l QuotaLedger) Allocate(group models.Group, existingUsed, requestedDelta int) (int, error) {
	if existingUsed < 0 {
		return 0, appErrors.Validation("reinforcements already used cannot be negative")
	}
	if requestedDelta < 0 {
		return 0, appErrors.Validation("reinforcements cannot be negative")
	}
	available := l.Available(group, existingUsed)
	if requestedDelta > available {
		return 0, appErrors.QuotaExceeded(available)
	}
	return existingUsed + requestedDelta, nil
}

// ValidateHeadcount enforces the student triple invariants.
func (QuotaLedger) ValidateHeadcount(h models.Headcount) error {
	switch {
	case h.Present < 0 || h.Eating < 0 || h.NotEating < 0:
		return appErrors.Validation("student counts cannot be negative")
	case h.Eating > h.Present:
		return appErrors.Validation("students eating cannot exceed students present")
	case h.Eating+h.NotEating != h.Present:
		return appErrors.Validation("students eating plus not eating must equal students present")
	}
	return nil
}

// Apply validates the headcount then allocates the delta. Nothing is returned on failure.
func (l QuotaLedger) Apply(group models.Group, existingUsed int, sub Submission) (*Allocation, error) {
	if err := l.ValidateHeadcount(sub.Headcount); err != nil {
		return nil, err
	}
	total, err := l.Allocate(group, existingUsed, sub.ReinforcementDelta)
	if err != nil {
		return nil, err
	}
	return &Allocation{
		Headcount:          sub.Headcount,
		ReinforcementsUsed: total,
		Available:          l.Available(group, total),
	}, nil
}

// CompleteHeadcount fills NotEating from Present and Eating when the caller omitted it.
func CompleteHeadcount(present, eating int, notEating *int) models.Headcount {
	h := models.Headcount{Present: present, Eating: eating}
	if notEating != nil {
		h.NotEating = *notEating
	} else if present >= eating {
		h.NotEating = present - eating
	}
	return h
}
