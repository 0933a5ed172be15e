package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/types"
	"github.com/okian/coachlens/pkg/metrics"
)

// MemoryStore is a mutex-guarded, in-process Store.
// Triage reads use a treap index so TopRisk is O(k + log n).
type MemoryStore struct {
	mu            sync.RWMutex
	records       map[string]types.StudentRecord
	index         riskIndex
	history       map[string][]model.MetricsSnapshot
	interventions map[string]model.InterventionEvent
	historyLimit  int

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	closeOnce             sync.Once
}

// NewMemoryStore constructs an in-memory store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records:               make(map[string]types.StudentRecord),
		history:               make(map[string][]model.MetricsSnapshot),
		interventions:         make(map[string]model.InterventionEvent),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishMetrics()
			}
		}
	}()
}

func (s *MemoryStore) publishMetrics() {
	counts := map[string]int{
		string(model.TierRed):    0,
		string(model.TierYellow): 0,
		string(model.TierGreen):  0,
	}
	s.mu.RLock()
	for _, rec := range s.records {
		counts[string(rec.DRI.Tier)]++
	}
	n := len(s.records)
	s.mu.RUnlock()

	metrics.UpdateTierCounts(counts)
	metrics.UpdateStudentsTracked(n)
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// SaveRecord implements Store.SaveRecord.
func (s *MemoryStore) SaveRecord(_ context.Context, rec types.StudentRecord) (*types.StudentRecord, error) {
	start := time.Now()
	if rec.StudentID == "" {
		metrics.RecordStoreOperation("save_record", msSince(start), ErrInvalidInput)
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	old, had := s.records[rec.StudentID]
	s.records[rec.StudentID] = rec
	s.index.upsert(rec.StudentID, old.DRI.RiskScore, had, rec.DRI.RiskScore)
	s.mu.Unlock()

	metrics.RecordStoreOperation("save_record", msSince(start), nil)
	if !had {
		return nil, nil
	}
	return &old, nil
}

// Record implements Store.Record.
func (s *MemoryStore) Record(_ context.Context, studentID string) (types.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[studentID]
	if !ok {
		return types.StudentRecord{}, ErrNotFound
	}
	return rec, nil
}

// Records implements Store.Records.
func (s *MemoryStore) Records(_ context.Context) ([]types.StudentRecord, error) {
	s.mu.RLock()
	out := make([]types.StudentRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// TopRisk implements Store.TopRisk.
func (s *MemoryStore) TopRisk(_ context.Context, n int) ([]types.TriageEntry, error) {
	start := time.Now()
	if n < 1 {
		metrics.RecordStoreOperation("top_risk", msSince(start), ErrInvalidLimit)
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	ids := s.index.top(n)
	out := make([]types.TriageEntry, 0, len(ids))
	for i, id := range ids {
		rec := s.records[id]
		out = append(out, types.TriageEntry{
			Rank:      i + 1,
			StudentID: id,
			Tier:      rec.DRI.Tier,
			Signal:    rec.DRI.Signal,
			RiskScore: rec.DRI.RiskScore,
		})
	}
	s.mu.RUnlock()

	metrics.RecordStoreOperation("top_risk", msSince(start), nil)
	return out, nil
}

// TriageRank implements Store.TriageRank.
func (s *MemoryStore) TriageRank(_ context.Context, studentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[studentID]
	if !ok {
		return 0, ErrNotFound
	}
	return s.index.rank(studentID, rec.DRI.RiskScore), nil
}

// AppendSnapshot implements Store.AppendSnapshot.
func (s *MemoryStore) AppendSnapshot(_ context.Context, snap model.MetricsSnapshot) error {
	if snap.StudentID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[snap.StudentID]
	// Keep history sorted by capture time; equal times keep arrival order.
	i := sort.Search(len(h), func(i int) bool { return h[i].CapturedAt.After(snap.CapturedAt) })
	h = append(h, model.MetricsSnapshot{})
	copy(h[i+1:], h[i:])
	h[i] = snap
	if s.historyLimit > 0 && len(h) > s.historyLimit {
		h = h[len(h)-s.historyLimit:]
	}
	s.history[snap.StudentID] = h
	return nil
}

// Snapshots implements Store.Snapshots.
func (s *MemoryStore) Snapshots(_ context.Context, studentID string) ([]model.MetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[studentID]
	out := make([]model.MetricsSnapshot, len(h))
	copy(out, h)
	return out, nil
}

// SaveIntervention implements Store.SaveIntervention.
func (s *MemoryStore) SaveIntervention(_ context.Context, ev model.InterventionEvent) error {
	if ev.ID == "" || ev.StudentID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.interventions[ev.ID]; ok {
		return ErrDuplicate
	}
	s.interventions[ev.ID] = ev
	return nil
}

// Intervention implements Store.Intervention.
func (s *MemoryStore) Intervention(_ context.Context, id string) (model.InterventionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.interventions[id]
	if !ok {
		return model.InterventionEvent{}, ErrNotFound
	}
	return ev, nil
}

// Interventions implements Store.Interventions.
func (s *MemoryStore) Interventions(_ context.Context) ([]model.InterventionEvent, error) {
	s.mu.RLock()
	out := make([]model.InterventionEvent, 0, len(s.interventions))
	for _, ev := range s.interventions {
		out = append(out, ev)
	}
	s.mu.RUnlock()
	sortInterventions(out)
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.size()
}

func sortInterventions(evs []model.InterventionEvent) {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].At.Equal(evs[j].At) {
			return evs[i].At.Before(evs[j].At)
		}
		return evs[i].ID < evs[j].ID
	})
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
