package models

import "time"

// GroupCategory classifies groups for display grouping.
type GroupCategory string

const (
	GroupCategoryPreschool  GroupCategory = "preschool"
	GroupCategoryElementary GroupCategory = "elementary"
	GroupCategoryMiddle     GroupCategory = "middle"
	GroupCategoryHigh       GroupCategory = "high"
	GroupCategoryStaff      GroupCategory = "staff"
)

// Valid returns true when the category is a supported value.
func (c GroupCategory) Valid() bool {
	switch c {
	case GroupCategoryPreschool, GroupCategoryElementary, GroupCategoryMiddle, GroupCategoryHigh, GroupCategoryStaff:
		return true
	default:
		return false
	}
}

// Group is a cohort (a grade or classroom) with its own reinforcement quota.
type Group struct {
	ID                    string        `db:"id" json:"id"`
	Name                  string        `db:"name" json:"name"`
	Category              GroupCategory `db:"category" json:"category"`
	MaxReinforcements     int           `db:"max_reinforcements" json:"maxReinforcements"`
	Description           *string       `db:"description" json:"description,omitempty"`
	EatingDurationMinutes *int          `db:"eating_duration_minutes" json:"eatingDurationMinutes,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updatedAt"`
}

// EatingDuration returns the group's dwell time, or fallback when the group has none configured.
func (g Group) EatingDuration(fallback time.Duration) time.Duration {
	if g.EatingDurationMinutes != nil && *g.EatingDurationMinutes > 0 {
		return time.Duration(*g.EatingDurationMinutes) * time.Minute
	}
	return fallback
}

// GroupCatalog indexes groups by name and id.
type GroupCatalog struct {
	byName map[string]*Group
	byID   map[string]*Group
}

// NewGroupCatalog builds a catalog from a group listing.
func NewGroupCatalog(groups []Group) GroupCatalog {
	catalog := GroupCatalog{
		byName: make(map[string]*Group, len(groups)),
		byID:   make(map[string]*Group, len(groups)),
	}
	for i := range groups {
		g := &groups[i]
		catalog.byName[g.Name] = g
		catalog.byID[g.ID] = g
	}
	return catalog
}

// ByName resolves a denormalized group name. Nil when unmatched.
func (c GroupCatalog) ByName(name string) *Group {
	return c.byName[name]
}

// ByID resolves a group id. Nil when unmatched.
func (c GroupCatalog) ByID(id string) *Group {
	return c.byID[id]
}
