package task

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

func ParsePriority(v string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low", "l":
		return PriorityLow, nil
	case "medium", "med", "m", "":
		return PriorityMedium, nil
	case "high", "h":
		return PriorityHigh, nil
	}
	return PriorityMedium, fmt.Errorf("unknown priority %q", v)
}

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

func ParseRecurrence(v string) (Recurrence, error) {
	switch Recurrence(strings.ToLower(strings.TrimSpace(v))) {
	case RecurrenceNone, "":
		return RecurrenceNone, nil
	case RecurrenceDaily:
		return RecurrenceDaily, nil
	case RecurrenceWeekly:
		return RecurrenceWeekly, nil
	case RecurrenceMonthly:
		return RecurrenceMonthly, nil
	case RecurrenceYearly:
		return RecurrenceYearly, nil
	}
	return RecurrenceNone, fmt.Errorf("unknown recurrence %q", v)
}

// Task is a single todo item. CategoryID and ParentID use uuid.Nil for
// "unset". Subtasks are not stored; they are derived by querying for tasks
// whose ParentID matches.
type Task struct {
	ID         uuid.UUID
	SeriesID   uuid.UUID
	Title      string
	Notes      string
	Priority   Priority
	Due        sql.NullTime
	Completed  bool
	Recurrence Recurrence
	CategoryID uuid.UUID
	ParentID   uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t Task) IsRecurring() bool {
	return t.Recurrence != RecurrenceNone
}

func (t Task) HasCategory() bool {
	return t.CategoryID != uuid.Nil
}

func (t Task) HasParent() bool {
	return t.ParentID != uuid.Nil
}

// Overdue reports whether the task is past due and still open.
func (t Task) Overdue(now time.Time) bool {
	return t.Due.Valid && t.Due.Time.Before(now) && !t.Completed
}

// Category groups tasks for display. It owns nothing: tasks reference a
// category by id, and deleting a category only clears those references.
type Category struct {
	ID        uuid.UUID
	Name      string
	ColorHex  string
	Icon      string
	SortOrder int
	CreatedAt time.Time
}

// ValidationError reports a mutation rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Less is the default list ordering: open tasks before completed ones,
// then priority high to low, then due date ascending with undated tasks
// after all dated ones, then newest created first.
func Less(a, b Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Due.Valid != b.Due.Valid {
		return a.Due.Valid
	}
	if a.Due.Valid && !a.Due.Time.Equal(b.Due.Time) {
		return a.Due.Time.Before(b.Due.Time)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// SortDefault orders tasks in place per Less.
func SortDefault(ts []Task) {
	sort.Slice(ts, func(i, j int) bool { return Less(ts[i], ts[j]) })
}

// SortCategories orders categories by sort order, then name.
func SortCategories(cs []Category) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].SortOrder != cs[j].SortOrder {
			return cs[i].SortOrder < cs[j].SortOrder
		}
		return cs[i].Name < cs[j].Name
	})
}

// Matches reports whether the task matches a case-insensitive substring
// query against its title or notes.
func (t Task) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Notes), q)
}
