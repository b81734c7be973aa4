package service

import (
	"sort"
	"time"

	"github.com/noah-isme/meal-queue-api/internal/models"
)

// DefaultEatingDuration applies to groups without their own dwell time.
const DefaultEatingDuration = 20 * time.Minute

// StatusView is the derived display state of a registration.
type StatusView struct {
	State            models.MealStatus `json:"state"`
	RemainingMinutes *int              `json:"remainingMinutes,omitempty"`
}

// StatusEngine derives registration state from timestamps. It never writes.
type StatusEngine struct {
	defaultDuration time.Duration
}

// NewStatusEngine builds an engine; non-positive durations fall back to DefaultEatingDuration.
func NewStatusEngine(defaultDuration time.Duration) StatusEngine {
	if defaultDuration <= 0 {
		defaultDuration = DefaultEatingDuration
	}
	return StatusEngine{defaultDuration: defaultDuration}
}

// Derive computes the state of reg at now. group is nil when the registration's
// group name did not resolve.
func (e StatusEngine) Derive(reg models.MealRegistration, group *models.Group, now time.Time) StatusView {
	if reg.EnteredAt == nil {
		return StatusView{State: models.MealStatusRegistered}
	}
	if group == nil {
		return StatusView{State: models.MealStatusUnknown}
	}
	duration := group.EatingDuration(e.defaultDuration)
	elapsed := now.Sub(*reg.EnteredAt)
	if elapsed < duration {
		remaining := int((duration - elapsed) / time.Minute)
		if remaining < 0 {
			remaining = 0
		}
		return StatusView{State: models.MealStatusEating, RemainingMinutes: &remaining}
	}
	zero := 0
	return StatusView{State: models.MealStatusFinished, RemainingMinutes: &zero}
}

// BoardEntry is a registration annotated for display.
type BoardEntry struct {
	models.MealRegistration
	Derived       StatusView            `json:"derived"`
	GroupID       string                `json:"groupId,omitempty"`
	GroupCategory *models.GroupCategory `json:"groupCategory,omitempty"`
}

// BoardStats aggregates derived states.
type BoardStats struct {
	Total      int `json:"total"`
	Registered int `json:"registered"`
	Eating     int `json:"eating"`
	Finished   int `json:"finished"`
	Unknown    int `json:"unknown"`
}

func (s *BoardStats) add(state models.MealStatus) {
	s.Total++
	switch state {
	case models.MealStatusRegistered:
		s.Registered++
	case models.MealStatusEating:
		s.Eating++
	case models.MealStatusFinished:
		s.Finished++
	default:
		s.Unknown++
	}
}

// Entry annotates one registration. group may be nil.
func (e StatusEngine) Entry(reg models.MealRegistration, group *models.Group, now time.Time) BoardEntry {
	entry := BoardEntry{MealRegistration: reg, Derived: e.Derive(reg, group, now)}
	if group != nil {
		category := group.Category
		entry.GroupID = group.ID
		entry.GroupCategory = &category
	}
	return entry
}

// Annotate derives the state of every registration against the catalog,
// newest registration first.
func (e StatusEngine) Annotate(regs []models.MealRegistration, catalog models.GroupCatalog, now time.Time) ([]BoardEntry, BoardStats) {
	entries := make([]BoardEntry, 0, len(regs))
	var stats BoardStats
	for _, reg := range regs {
		entry := e.Entry(reg, catalog.ByName(reg.Group), now)
		stats.add(entry.Derived.State)
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RegisteredAt.After(entries[j].RegisteredAt)
	})
	return entries, stats
}
