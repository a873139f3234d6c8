package spec

import (
	"errors"
	"testing"
	"time"

	"freelance-workflow/core/models"

	"github.com/shopspring/decimal"
)

func TestParseTaskSpec(t *testing.T) {
	t.Parallel()

	in, err := ParseTaskSpec(`
task:
  title: Payment webhook service
  description: |
    Receive and verify provider callbacks.
  category: " Go "
  priority: HIGH
  terms:
    budget: "480.50"
    deadline: "2025-07-01T17:00:00Z"
  revisions:
    limit: 3
`)
	if err != nil {
		t.Fatalf("ParseTaskSpec: %v", err)
	}
	if in.Title != "Payment webhook service" || in.Category != "go" || in.Priority != models.PriorityHigh {
		t.Fatalf("unexpected input: %+v", in)
	}
	if in.Description != "Receive and verify provider callbacks." {
		t.Fatalf("description = %q", in.Description)
	}
	if !in.Budget.Equal(decimal.RequireFromString("480.50")) {
		t.Fatalf("budget = %s", in.Budget)
	}
	if !in.Deadline.Equal(time.Date(2025, 7, 1, 17, 0, 0, 0, time.UTC)) {
		t.Fatalf("deadline = %v", in.Deadline)
	}
	if in.RevisionLimit == nil || *in.RevisionLimit != 3 {
		t.Fatalf("revision limit = %v", in.RevisionLimit)
	}
}

func TestParseTaskSpec_DefaultsRevisionLimit(t *testing.T) {
	t.Parallel()

	in, err := ParseTaskSpec("task:\n  title: x\n  category: go\n  terms:\n    budget: \"10\"\n    deadline: \"2025-07-01T00:00:00Z\"\n")
	if err != nil {
		t.Fatalf("ParseTaskSpec: %v", err)
	}
	if in.RevisionLimit != nil {
		t.Fatalf("expected platform default, got %d", *in.RevisionLimit)
	}
}

func TestParseTaskSpec_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing budget":   "task:\n  terms:\n    deadline: \"2025-07-01T00:00:00Z\"\n",
		"bad budget":       "task:\n  terms:\n    budget: lots\n    deadline: \"2025-07-01T00:00:00Z\"\n",
		"missing deadline": "task:\n  terms:\n    budget: \"10\"\n",
		"bad deadline":     "task:\n  terms:\n    budget: \"10\"\n    deadline: next week\n",
	}
	for name, doc := range cases {
		var ve *models.ValidationError
		if _, err := ParseTaskSpec(doc); !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	if _, err := ParseTaskSpec("task: [broken"); err == nil {
		t.Fatal("expected YAML error")
	}
}
