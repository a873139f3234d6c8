package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"freelance-workflow/core/models"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps all records in process memory. A single mutex makes
// every Commit atomic.
type MemoryStore struct {
	mu          sync.Mutex
	tasks       map[string]*models.Task
	freelancers map[string]*models.Freelancer
	submissions map[string][]models.Submission
	payments    map[string]*models.Payment
	events      map[string][]models.TaskEvent
	nextEventID int64
	now         func() time.Time
	drift       DriftObserver
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:       make(map[string]*models.Task),
		freelancers: make(map[string]*models.Freelancer),
		submissions: make(map[string][]models.Submission),
		payments:    make(map[string]*models.Payment),
		events:      make(map[string][]models.TaskEvent),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetDriftObserver registers o to be told about clamped workload releases
func (s *MemoryStore) SetDriftObserver(o DriftObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drift = o
}

// CreateTask stores a new task at version 1
func (s *MemoryStore) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	now := s.now()
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.WorkflowTimestamps == nil {
		task.WorkflowTimestamps = make(map[models.Milestone]time.Time)
	}
	s.tasks[task.ID] = task.Clone()

	s.appendEvent(models.TaskEvent{TaskID: task.ID, ToStatus: task.Status, ActorID: task.ClientID, Reason: "task_created"})
	return nil
}

// GetTask returns a copy of the task
func (s *MemoryStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return task.Clone(), nil
}

// ListTasks returns tasks matching filter, newest first
func (s *MemoryStore) ListTasks(_ context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*models.Task
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.ClientID != "" && task.ClientID != filter.ClientID {
			continue
		}
		if filter.FreelancerID != "" && !task.AssignedTo(filter.FreelancerID) {
			continue
		}
		tasks = append(tasks, task.Clone())
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

// CreateFreelancer stores a freelancer profile
func (s *MemoryStore) CreateFreelancer(_ context.Context, f *models.Freelancer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if _, exists := s.freelancers[f.ID]; exists {
		return fmt.Errorf("freelancer %s already exists", f.ID)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	s.freelancers[f.ID] = copyFreelancer(f)
	return nil
}

// GetFreelancer returns a copy of the freelancer profile
func (s *MemoryStore) GetFreelancer(_ context.Context, id string) (*models.Freelancer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.freelancers[id]
	if !ok {
		return nil, fmt.Errorf("freelancer %s: %w", id, models.ErrNotFound)
	}
	return copyFreelancer(f), nil
}

// ListFreelancers returns freelancers matching filter ordered by signup time
func (s *MemoryStore) ListFreelancers(_ context.Context, filter models.FreelancerFilter) ([]*models.Freelancer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Freelancer
	for _, f := range s.freelancers {
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		if filter.Skill != "" && !f.HasSkill(filter.Skill) {
			continue
		}
		if filter.WithCapacity && !f.HasCapacity() {
			continue
		}
		out = append(out, copyFreelancer(f))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListSubmissions returns the task's submissions in version order
func (s *MemoryStore) ListSubmissions(_ context.Context, taskID string) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]models.Submission, len(s.submissions[taskID]))
	copy(subs, s.submissions[taskID])
	return subs, nil
}

// GetPayment returns the payment recorded for a task
func (s *MemoryStore) GetPayment(_ context.Context, taskID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[taskID]
	if !ok {
		return nil, fmt.Errorf("payment for task %s: %w", taskID, models.ErrNotFound)
	}
	c := *p
	return &c, nil
}

// ListTaskEvents returns the newest events first
func (s *MemoryStore) ListTaskEvents(_ context.Context, taskID string, limit int) ([]models.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.events[taskID]
	out := make([]models.TaskEvent, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Commit applies change if the stored task still matches its preconditions
func (s *MemoryStore) Commit(_ context.Context, change Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[change.Task.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", change.Task.ID, models.ErrNotFound)
	}
	if current.Version != change.ExpectedVersion ||
		current.Status != change.ExpectedStatus ||
		!sameFreelancer(current.FreelancerID, change.ExpectedFreelancer) {
		return change.conflictError()
	}

	// Validate everything before touching state
	counters := make(map[string]int, len(change.Workload))
	var drifted []string
	for _, delta := range change.Workload {
		f, ok := s.freelancers[delta.FreelancerID]
		if !ok {
			return fmt.Errorf("freelancer %s: %w", delta.FreelancerID, models.ErrNotFound)
		}
		count, seen := counters[f.ID]
		if !seen {
			count = f.CurrentActiveTasks
		}
		if delta.Delta > 0 && (f.Status != models.FreelancerStatusActive || count+delta.Delta > f.MaxActiveTasks) {
			return &models.WorkloadExceededError{FreelancerID: f.ID, Current: count, Max: f.MaxActiveTasks}
		}
		count += delta.Delta
		if count < 0 {
			drifted = append(drifted, f.ID)
			count = 0
		}
		counters[f.ID] = count
	}
	if change.Payment != nil {
		if _, exists := s.payments[change.Payment.TaskID]; exists {
			return fmt.Errorf("task %s: %w", change.Payment.TaskID, models.ErrPaymentExists)
		}
	}

	now := s.now()
	for id, count := range counters {
		s.freelancers[id].CurrentActiveTasks = count
	}

	change.Task.Version = current.Version + 1
	change.Task.UpdatedAt = now
	s.tasks[change.Task.ID] = change.Task.Clone()

	if change.Payment != nil {
		p := *change.Payment
		s.payments[p.TaskID] = &p
	}
	if change.Submission != nil {
		s.submissions[change.Task.ID] = append(s.submissions[change.Task.ID], *change.Submission)
	}
	if change.Event != nil {
		s.appendEvent(*change.Event)
	}
	if s.drift != nil {
		for _, id := range drifted {
			s.drift.ObserveWorkloadDrift(id)
		}
	}
	return nil
}

func (s *MemoryStore) appendEvent(event models.TaskEvent) {
	s.nextEventID++
	event.ID = s.nextEventID
	if event.At.IsZero() {
		event.At = s.now()
	}
	s.events[event.TaskID] = append(s.events[event.TaskID], event)
}

func copyFreelancer(f *models.Freelancer) *models.Freelancer {
	c := *f
	c.Skills = append([]string(nil), f.Skills...)
	if f.OnTimeCompletionRate != nil {
		rate := *f.OnTimeCompletionRate
		c.OnTimeCompletionRate = &rate
	}
	return &c
}
