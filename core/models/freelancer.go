package models

import "time"

// Freelancer represents a worker profile that tasks can be assigned to
type Freelancer struct {
	ID                   string
	Name                 string
	Status               FreelancerStatus
	Skills               []string
	PerformanceScore     float64  // 0 - 100
	OnTimeCompletionRate *float64 // 0 - 100, nil when no history
	CurrentActiveTasks   int
	MaxActiveTasks       int
	CreatedAt            time.Time // Signup time
}

// FreelancerStatus represents whether a freelancer can receive work
type FreelancerStatus string

const (
	FreelancerStatusActive    FreelancerStatus = "active"
	FreelancerStatusInactive  FreelancerStatus = "inactive"
	FreelancerStatusSuspended FreelancerStatus = "suspended"
)

// HasSkill reports whether the freelancer lists skill
func (f *Freelancer) HasSkill(skill string) bool {
	for _, s := range f.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// HasCapacity reports whether another task can be assigned
func (f *Freelancer) HasCapacity() bool {
	return f.CurrentActiveTasks < f.MaxActiveTasks
}

// FreelancerFilter narrows freelancer listings. Zero values mean "any".
type FreelancerFilter struct {
	Status       *FreelancerStatus
	Skill        string
	WithCapacity bool
}

// WorkloadDelta is a change to one freelancer's active task counter
type WorkloadDelta struct {
	FreelancerID string
	Delta        int // +1 acquire, -1 release
}
