// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// TaskType distinguishes new material from spaced review.
type TaskType string

const (
	TaskLearning TaskType = "learning"
	TaskReview   TaskType = "review"
)

// Task is one completed unit of work inside an activity log.
type Task struct {
	Type             TaskType   `json:"type"`
	Topic            string     `json:"topic"`
	Course           string     `json:"course,omitempty"` // overrides the student's course when set
	Questions        int        `json:"questions"`
	QuestionsCorrect int        `json:"questions_correct"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Scored reports whether the task asked any questions.
func (t Task) Scored() bool { return t.Questions > 0 }

// Accuracy returns the correct share in [0,1]; 0 for unscored tasks.
func (t Task) Accuracy() float64 {
	if t.Questions <= 0 {
		return 0
	}
	return float64(t.QuestionsCorrect) / float64(t.Questions)
}

// Errors returns the number of wrong answers, never negative.
func (t Task) Errors() int {
	if e := t.Questions - t.QuestionsCorrect; e > 0 {
		return e
	}
	return 0
}

// Chronological returns the timestamped tasks ordered oldest first.
// Tasks without a completion time carry no ordering signal and are dropped.
func Chronological(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.CompletedAt != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(*out[j].CompletedAt)
	})
	return out
}

// ActivityLog aggregates a student's activity over the reporting week.
// Durations are in seconds.
type ActivityLog struct {
	StudentID        string `json:"student_id"`
	XPAwarded        int    `json:"xp_awarded"`
	TimeEngaged      int    `json:"time_engaged"`
	TimeProductive   int    `json:"time_productive"`
	TimeElapsed      int    `json:"time_elapsed"`
	Questions        int    `json:"questions"`
	QuestionsCorrect int    `json:"questions_correct"`
	NumTasks         int    `json:"num_tasks"`
	Tasks            []Task `json:"tasks"`
}

// Schedule carries the student's daily XP goal.
type Schedule struct {
	DailyXPGoal int `json:"daily_xp_goal"`
}

// WeeklyGoal returns the XP target for a five-day week.
func (s Schedule) WeeklyGoal() int { return s.DailyXPGoal * 5 }

// Course describes the course a student is enrolled in.
type Course struct {
	Name        string     `json:"name"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
