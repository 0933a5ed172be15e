// Package cohort compares course outcomes of coached and uncoached students.
// The comparison is descriptive; it makes no causal claim.
package cohort

import (
	"math"

	"github.com/okian/coachlens/internal/domain/model"
)

// Student is one enrolment considered by the comparison.
type Student struct {
	StudentID string       `json:"student_id"`
	Course    model.Course `json:"course"`
}

// Stats describes one side of the comparison.
type Stats struct {
	Count             int      `json:"count"`
	Completed         int      `json:"completed"`
	CompletionRate    float64  `json:"completion_rate"`
	AvgCompletionDays *float64 `json:"avg_completion_days"`
}

// Comparison holds both sides.
type Comparison struct {
	WithIntervention    Stats `json:"with_intervention"`
	WithoutIntervention Stats `json:"without_intervention"`
}

type accumulator struct {
	count, completed, timed int
	days                    float64
}

// add counts any dated completion; only well-ordered start/completion
// pairs contribute to the average duration.
func (a *accumulator) add(c model.Course) {
	a.count++
	if c.CompletedAt == nil {
		return
	}
	a.completed++
	if c.StartedAt == nil || c.CompletedAt.Before(*c.StartedAt) {
		return
	}
	a.timed++
	a.days += c.CompletedAt.Sub(*c.StartedAt).Hours() / 24
}

func (a accumulator) stats() Stats {
	s := Stats{Count: a.count, Completed: a.completed}
	if a.count > 0 {
		s.CompletionRate = math.Round(float64(a.completed)/float64(a.count)*1000) / 10
	}
	if a.timed > 0 {
		avg := math.Round(a.days/float64(a.timed)*10) / 10
		s.AvgCompletionDays = &avg
	}
	return s
}

// Compare splits students by whether any intervention targeted them.
func Compare(students []Student, interventions []model.InterventionEvent) Comparison {
	coached := make(map[string]struct{}, len(interventions))
	for _, ev := range interventions {
		coached[ev.StudentID] = struct{}{}
	}
	var with, without accumulator
	for _, s := range students {
		if _, ok := coached[s.StudentID]; ok {
			with.add(s.Course)
		} else {
			without.add(s.Course)
		}
	}
	return Comparison{WithIntervention: with.stats(), WithoutIntervention: without.stats()}
}
