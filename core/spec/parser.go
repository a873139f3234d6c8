package spec

import (
	"fmt"
	"strings"
	"time"

	"freelance-workflow/core/models"
	"freelance-workflow/core/orchestrator"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TaskSpec represents a YAML task specification
type TaskSpec struct {
	Task TaskSpecTask `yaml:"task"`
}

// TaskSpecTask represents the task section of the spec
type TaskSpecTask struct {
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Priority    string            `yaml:"priority"`
	Terms       TaskSpecTerms     `yaml:"terms"`
	Revisions   TaskSpecRevisions `yaml:"revisions"`
}

// TaskSpecTerms represents the commercial terms of a task
type TaskSpecTerms struct {
	Budget   string `yaml:"budget"`   // Decimal string, e.g. "250.00"
	Deadline string `yaml:"deadline"` // ISO 8601
}

// TaskSpecRevisions represents the revision policy of a task
type TaskSpecRevisions struct {
	Limit *int `yaml:"limit,omitempty"`
}

// ParseTaskSpec parses a YAML task specification into task input
func ParseTaskSpec(specYAML string) (orchestrator.NewTask, error) {
	var spec TaskSpec
	if err := yaml.Unmarshal([]byte(specYAML), &spec); err != nil {
		return orchestrator.NewTask{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	in := orchestrator.NewTask{
		Title:         spec.Task.Title,
		Description:   strings.TrimSpace(spec.Task.Description),
		Category:      strings.ToLower(strings.TrimSpace(spec.Task.Category)),
		Priority:      models.Priority(strings.ToLower(spec.Task.Priority)),
		RevisionLimit: spec.Task.Revisions.Limit,
	}

	if spec.Task.Terms.Budget == "" {
		return orchestrator.NewTask{}, &models.ValidationError{Field: "terms.budget", Message: "is required"}
	}
	budget, err := decimal.NewFromString(spec.Task.Terms.Budget)
	if err != nil {
		return orchestrator.NewTask{}, &models.ValidationError{Field: "terms.budget", Value: spec.Task.Terms.Budget, Message: "must be a decimal amount"}
	}
	in.Budget = budget

	if spec.Task.Terms.Deadline == "" {
		return orchestrator.NewTask{}, &models.ValidationError{Field: "terms.deadline", Message: "is required"}
	}
	deadline, err := time.Parse(time.RFC3339, spec.Task.Terms.Deadline)
	if err != nil {
		return orchestrator.NewTask{}, &models.ValidationError{Field: "terms.deadline", Value: spec.Task.Terms.Deadline, Message: "must be RFC 3339"}
	}
	in.Deadline = deadline

	return in, nil
}
