package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"freelance-workflow/core/models"
)

// Scoring weights in tenths: 0.4 performance, 0.3 skill, 0.2 availability,
// 0.1 completion rate. Integer weights keep the weighted sum exact for
// integral inputs.
const (
	weightPerformance  = 4
	weightSkill        = 3
	weightAvailability = 2
	weightCompletion   = 1
	weightTotal        = 10

	defaultCompletionRate = 50.0
)

// FreelancerLister queries freelancer profiles
type FreelancerLister interface {
	ListFreelancers(ctx context.Context, filter models.FreelancerFilter) ([]*models.Freelancer, error)
}

// Breakdown holds the clamped inputs of a fitness score
type Breakdown struct {
	Performance    float64
	SkillMatch     float64
	Availability   float64
	CompletionRate float64
}

// Candidate is a scored freelancer for a task
type Candidate struct {
	Freelancer *models.Freelancer
	Score      int
	Breakdown  Breakdown
}

// Matcher selects the best freelancer for an unassigned task
type Matcher struct {
	freelancers FreelancerLister
}

// NewMatcher creates a new assignment matcher
func NewMatcher(freelancers FreelancerLister) *Matcher {
	return &Matcher{freelancers: freelancers}
}

// Match returns the top ranked eligible freelancer for task
func (m *Matcher) Match(ctx context.Context, task *models.Task) (Candidate, error) {
	ranked, err := m.Candidates(ctx, task)
	if err != nil {
		return Candidate{}, err
	}
	if len(ranked) == 0 {
		return Candidate{}, &models.NoEligibleCandidateError{TaskID: task.ID, Category: task.Category}
	}
	return ranked[0], nil
}

// Candidates returns every eligible freelancer for task, best first
func (m *Matcher) Candidates(ctx context.Context, task *models.Task) ([]Candidate, error) {
	active := models.FreelancerStatusActive
	pool, err := m.freelancers.ListFreelancers(ctx, models.FreelancerFilter{
		Status:       &active,
		Skill:        task.Category,
		WithCapacity: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return Rank(task, pool), nil
}

// Rank filters pool down to eligible freelancers and orders them by score.
// Equal scores fall back to higher raw performance, then lower current
// workload, then earlier signup, then ID, so the order never depends on
// how the pool was listed.
func Rank(task *models.Task, pool []*models.Freelancer) []Candidate {
	var candidates []Candidate
	for _, f := range pool {
		if !Eligible(task, f) {
			continue
		}
		b := breakdown(task, f)
		candidates = append(candidates, Candidate{
			Freelancer: f,
			Score:      weigh(b),
			Breakdown:  b,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Freelancer.PerformanceScore != b.Freelancer.PerformanceScore {
			return a.Freelancer.PerformanceScore > b.Freelancer.PerformanceScore
		}
		if a.Freelancer.CurrentActiveTasks != b.Freelancer.CurrentActiveTasks {
			return a.Freelancer.CurrentActiveTasks < b.Freelancer.CurrentActiveTasks
		}
		if !a.Freelancer.CreatedAt.Equal(b.Freelancer.CreatedAt) {
			return a.Freelancer.CreatedAt.Before(b.Freelancer.CreatedAt)
		}
		return a.Freelancer.ID < b.Freelancer.ID
	})

	return candidates
}

// Eligible reports whether f may be assigned task
func Eligible(task *models.Task, f *models.Freelancer) bool {
	return f.Status == models.FreelancerStatusActive &&
		f.HasSkill(task.Category) &&
		f.HasCapacity()
}

// Score computes the weighted fitness of f for task, rounded to an integer
func Score(task *models.Task, f *models.Freelancer) int {
	return weigh(breakdown(task, f))
}

func breakdown(task *models.Task, f *models.Freelancer) Breakdown {
	b := Breakdown{
		Performance:    clamp(f.PerformanceScore),
		CompletionRate: defaultCompletionRate,
	}
	if f.HasSkill(task.Category) {
		b.SkillMatch = 100
	}
	if f.HasCapacity() {
		b.Availability = 100
	}
	if f.OnTimeCompletionRate != nil {
		b.CompletionRate = clamp(*f.OnTimeCompletionRate)
	}
	return b
}

func weigh(b Breakdown) int {
	sum := weightPerformance*b.Performance +
		weightSkill*b.SkillMatch +
		weightAvailability*b.Availability +
		weightCompletion*b.CompletionRate
	return int(math.Round(sum / weightTotal))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
