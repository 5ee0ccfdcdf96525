// Package scheduler runs time-predicate matched jobs on a fixed tick and
// dispatches their effect, typically a synthetic input fed back into the
// orchestration pipeline.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/andoma/nora-core/core/sessions"
)

// ProgramKind enumerates the closed set of behaviors a job can trigger.
type ProgramKind string

const (
	// ProgramInput feeds the job's args as a synthetic input into the
	// orchestration pipeline for the owning session.
	ProgramInput ProgramKind = "input"
	// ProgramSay delivers a fixed text directly to the owning session's
	// output channel, bypassing intent resolution.
	ProgramSay ProgramKind = "say"
)

// Field names one time-granularity predicate slot on a job.
type Field string

const (
	FieldYearly           Field = "yearly"
	FieldMonthly          Field = "monthly"
	FieldWeekly           Field = "weekly"
	FieldDaily            Field = "daily"
	FieldHourly           Field = "hourly"
	FieldEveryHalfHour    Field = "everyHalfHour"
	FieldEveryQuarterHour Field = "everyQuarterHour"
	FieldEveryFiveMinutes Field = "everyFiveMinutes"
	FieldMinutely         Field = "minutely"
	FieldOnDate           Field = "onDate"
	FieldOnTick           Field = "onTick"
	FieldOnBoot           Field = "onBoot"
)

// Job is one scheduled unit. The scheduler only ever reads jobs; creation
// and mutation belong to the embedding application.
type Job struct {
	ID         string
	ManagerUID string

	Program ProgramKind
	Args    map[string]any

	Session *sessions.Session

	// Predicate fields. String fields hold a formatted projection of the
	// time they should fire at; empty means absent. A job fires when ANY
	// populated field matches the tick's corresponding projection.
	Yearly   string // day-of-year + "15:04:05"
	Monthly  string // day-of-month + "15:04:05"
	Weekly   string // weekday number + "15:04:05"
	Daily    string // "15:04:05"
	Hourly   string // "04:05"
	Minutely string // "05"
	OnDate   string // "2006-01-02 15:04:05"

	EveryHalfHour    bool
	EveryQuarterHour bool
	EveryFiveMinutes bool
	OnTick           bool
	OnBoot           bool
}

// Condition is one disjunct of a tick's predicate set: a field compared
// against the tick's formatted projection (string fields) or true (boolean
// fields).
type Condition struct {
	Field Field
	Value string
}

// Query selects jobs owned by one manager whose predicate fields match at
// least one condition.
type Query struct {
	ManagerUID string
	Any        []Condition
}

// Store is the external job persistence contract. The scheduler has no
// write path.
type Store interface {
	Find(ctx context.Context, query Query) ([]Job, error)
}

// ConditionsAt projects t (seconds zeroed) onto every time-granularity
// field, producing the disjunctive predicate set for one tick.
func ConditionsAt(t time.Time) []Condition {
	t = t.Truncate(time.Minute)

	conditions := []Condition{
		{Field: FieldYearly, Value: fmt.Sprintf("%d %s", t.YearDay(), t.Format("15:04:05"))},
		{Field: FieldMonthly, Value: fmt.Sprintf("%d %s", t.Day(), t.Format("15:04:05"))},
		{Field: FieldWeekly, Value: fmt.Sprintf("%d %s", int(t.Weekday()), t.Format("15:04:05"))},
		{Field: FieldDaily, Value: t.Format("15:04:05")},
		{Field: FieldHourly, Value: t.Format("04:05")},
		{Field: FieldMinutely, Value: t.Format("05")},
		{Field: FieldOnDate, Value: t.Format("2006-01-02 15:04:05")},
		{Field: FieldOnTick},
	}

	if t.Minute()%30 == 0 {
		conditions = append(conditions, Condition{Field: FieldEveryHalfHour})
	}
	if t.Minute()%15 == 0 {
		conditions = append(conditions, Condition{Field: FieldEveryQuarterHour})
	}
	if t.Minute()%5 == 0 {
		conditions = append(conditions, Condition{Field: FieldEveryFiveMinutes})
	}

	return conditions
}

// Matches reports whether the job's populated predicate fields satisfy at
// least one condition. Absent fields never contribute.
func (j *Job) Matches(conditions []Condition) bool {
	for _, condition := range conditions {
		switch condition.Field {
		case FieldYearly:
			if j.Yearly != "" && j.Yearly == condition.Value {
				return true
			}
		case FieldMonthly:
			if j.Monthly != "" && j.Monthly == condition.Value {
				return true
			}
		case FieldWeekly:
			if j.Weekly != "" && j.Weekly == condition.Value {
				return true
			}
		case FieldDaily:
			if j.Daily != "" && j.Daily == condition.Value {
				return true
			}
		case FieldHourly:
			if j.Hourly != "" && j.Hourly == condition.Value {
				return true
			}
		case FieldMinutely:
			if j.Minutely != "" && j.Minutely == condition.Value {
				return true
			}
		case FieldOnDate:
			if j.OnDate != "" && j.OnDate == condition.Value {
				return true
			}
		case FieldEveryHalfHour:
			if j.EveryHalfHour {
				return true
			}
		case FieldEveryQuarterHour:
			if j.EveryQuarterHour {
				return true
			}
		case FieldEveryFiveMinutes:
			if j.EveryFiveMinutes {
				return true
			}
		case FieldOnTick:
			if j.OnTick {
				return true
			}
		case FieldOnBoot:
			if j.OnBoot {
				return true
			}
		}
	}
	return false
}
