// Package repository persists student records, metric history and interventions.
package repository

import (
	"context"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/types"
)

// Store provides read/write access to evaluation state and history.
type Store interface {
	// SaveRecord replaces the latest record for a student.
	// Returns the previous record when one existed.
	SaveRecord(ctx context.Context, rec types.StudentRecord) (*types.StudentRecord, error)

	// Record returns the latest record for a student.
	// Returns ErrNotFound if the student is unknown.
	Record(ctx context.Context, studentID string) (types.StudentRecord, error)

	// Records returns every stored record ordered by student ID.
	Records(ctx context.Context) ([]types.StudentRecord, error)

	// TopRisk returns up to n students ordered by risk score desc, student ID asc.
	TopRisk(ctx context.Context, n int) ([]types.TriageEntry, error)

	// TriageRank returns the 1-based position of a student in the triage order.
	// Returns ErrNotFound if the student is unknown.
	TriageRank(ctx context.Context, studentID string) (int, error)

	// AppendSnapshot adds a snapshot to a student's history.
	AppendSnapshot(ctx context.Context, s model.MetricsSnapshot) error

	// Snapshots returns a student's history ordered oldest first.
	Snapshots(ctx context.Context, studentID string) ([]model.MetricsSnapshot, error)

	// SaveIntervention stores an intervention. Returns ErrDuplicate on ID reuse.
	SaveIntervention(ctx context.Context, ev model.InterventionEvent) error

	// Intervention returns one intervention by ID.
	Intervention(ctx context.Context, id string) (model.InterventionEvent, error)

	// Interventions returns all interventions ordered by time.
	Interventions(ctx context.Context) ([]model.InterventionEvent, error)

	// Count returns the number of students with a stored record.
	Count(ctx context.Context) int

	// Close releases resources held by the store.
	Close() error
}
