package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"freelance-workflow/core/effects"
	"freelance-workflow/core/models"
	"freelance-workflow/core/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	admin  = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	client = models.Actor{ID: "client-1", Role: models.RoleClient}
	start  = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	store *repository.MemoryStore
	sink  *effects.MemorySink
	orch  *Orchestrator
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newFixture(t *testing.T, freelancers ...*models.Freelancer) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	for _, f := range freelancers {
		if err := store.CreateFreelancer(context.Background(), f); err != nil {
			t.Fatalf("CreateFreelancer: %v", err)
		}
	}
	sink := effects.NewMemorySink()
	dispatcher := effects.NewDispatcher(sink, sink, sink, nil, quietLog())

	orch, err := NewOrchestrator(store, dispatcher, nil, Options{
		CommissionPct: decimal.NewFromInt(15),
		RevisionLimit: DefaultRevisionLimit,
	}, quietLog())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	orch.SetClock(func() time.Time { return start })

	return &fixture{store: store, sink: sink, orch: orch}
}

func coder(id string, current, max int) *models.Freelancer {
	return &models.Freelancer{
		ID:                 id,
		Name:               id,
		Status:             models.FreelancerStatusActive,
		Skills:             []string{"go"},
		PerformanceScore:   80,
		CurrentActiveTasks: current,
		MaxActiveTasks:     max,
	}
}

func freelancerActor(id string) models.Actor {
	return models.Actor{ID: id, Role: models.RoleFreelancer}
}

func (fx *fixture) openTask(t *testing.T, in NewTask) string {
	t.Helper()
	ctx := context.Background()

	if in.Title == "" {
		in.Title = "Build API"
	}
	if in.Category == "" {
		in.Category = "go"
	}
	if in.Budget.IsZero() {
		in.Budget = decimal.RequireFromString("100.00")
	}
	if in.Deadline.IsZero() {
		in.Deadline = start.Add(7 * 24 * time.Hour)
	}

	created, err := fx.orch.CreateTask(ctx, client, in)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := fx.orch.ReviewTask(ctx, admin, created.Task.ID, true, ""); err != nil {
		t.Fatalf("ReviewTask: %v", err)
	}
	return created.Task.ID
}

func (fx *fixture) workload(t *testing.T, id string) int {
	t.Helper()
	f, err := fx.store.GetFreelancer(context.Background(), id)
	if err != nil {
		t.Fatalf("GetFreelancer: %v", err)
	}
	return f.CurrentActiveTasks
}

// deliver takes an assigned task through work and QA to delivered
func (fx *fixture) deliver(t *testing.T, taskID string, worker models.Actor) {
	t.Helper()
	ctx := context.Background()

	task, _ := fx.store.GetTask(ctx, taskID)
	if task.Status == models.TaskStatusAssigned {
		if _, err := fx.orch.StartTask(ctx, worker, taskID); err != nil {
			t.Fatalf("StartTask: %v", err)
		}
	}
	if _, err := fx.orch.SubmitWork(ctx, worker, taskID, "done"); err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}
	if _, err := fx.orch.BeginQA(ctx, admin, taskID); err != nil {
		t.Fatalf("BeginQA: %v", err)
	}
	if _, err := fx.orch.CompleteQA(ctx, admin, taskID, true, ""); err != nil {
		t.Fatalf("CompleteQA: %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	valid := NewTask{
		Title:    "Landing page",
		Category: "go",
		Budget:   decimal.RequireFromString("250.50"),
		Deadline: start.Add(48 * time.Hour),
	}

	res, err := fx.orch.CreateTask(ctx, client, valid)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task := res.Task
	if task.Status != models.TaskStatusSubmitted || task.RevisionLimit != DefaultRevisionLimit ||
		task.Priority != models.PriorityMedium || task.Version != 1 || task.FreelancerID != nil {
		t.Fatalf("unexpected task: %+v", task)
	}

	invalid := []NewTask{
		{Title: "x", Category: "go", Budget: decimal.NewFromInt(-5), Deadline: valid.Deadline},
		{Title: "x", Category: "go", Budget: decimal.RequireFromString("10.001"), Deadline: valid.Deadline},
		{Title: "x", Category: "go", Budget: decimal.NewFromInt(10), Deadline: start.Add(-time.Hour)},
		{Title: "", Category: "go", Budget: decimal.NewFromInt(10), Deadline: valid.Deadline},
		{Title: "x", Category: "go", Budget: decimal.NewFromInt(10), Deadline: valid.Deadline, Priority: "asap"},
	}
	for i, in := range invalid {
		var ve *models.ValidationError
		if _, err := fx.orch.CreateTask(ctx, client, in); !errors.As(err, &ve) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}

	if _, err := fx.orch.CreateTask(ctx, freelancerActor("f1"), valid); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAcceptTask_ConcurrentClaimHasOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 1), coder("f2", 0, 1))
	taskID := fx.openTask(t, NewTask{})

	var (
		wg      sync.WaitGroup
		ready   = make(chan struct{})
		errs    = make([]error, 2)
		workers = []string{"f1", "f2"}
	)
	for i, id := range workers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-ready
			_, errs[i] = fx.orch.AcceptTask(ctx, freelancerActor(id), taskID)
		}(i, id)
	}
	close(ready)
	wg.Wait()

	winner, loser := -1, -1
	for i, err := range errs {
		switch {
		case err == nil:
			winner = i
		case errors.Is(err, models.ErrAssignmentConflict):
			loser = i
		default:
			t.Fatalf("unexpected error from %s: %v", workers[i], err)
		}
	}
	if winner == -1 || loser == -1 {
		t.Fatalf("expected one winner and one conflict, got %v", errs)
	}

	task, _ := fx.store.GetTask(ctx, taskID)
	if !task.AssignedTo(workers[winner]) || task.Status != models.TaskStatusAssigned {
		t.Fatalf("task not held by winner: %+v", task)
	}
	if fx.workload(t, workers[winner]) != 1 || fx.workload(t, workers[loser]) != 0 {
		t.Fatal("only the winner's workload should change")
	}
}

func TestAssignThenFreelancerCancel_RestoresWorkload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 1, 3))
	taskID := fx.openTask(t, NewTask{})

	res, err := fx.orch.AssignTask(ctx, admin, taskID, "f1")
	if err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if _, ok := res.Task.WorkflowTimestamps[models.MilestoneAssigned]; !ok {
		t.Fatal("assignedAt milestone missing")
	}
	if fx.workload(t, "f1") != 2 {
		t.Fatalf("workload = %d, want 2", fx.workload(t, "f1"))
	}

	res, err = fx.orch.CancelTask(ctx, freelancerActor("f1"), taskID, "too busy")
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if res.Task.Status != models.TaskStatusUnderReview || res.Task.FreelancerID != nil {
		t.Fatalf("task not released: %+v", res.Task)
	}
	if fx.workload(t, "f1") != 1 {
		t.Fatalf("workload = %d, want 1", fx.workload(t, "f1"))
	}
}

func TestApproveTask_RecordsPaymentOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))
	taskID := fx.openTask(t, NewTask{Budget: decimal.RequireFromString("100.00")})
	worker := freelancerActor("f1")

	if _, err := fx.orch.AcceptTask(ctx, worker, taskID); err != nil {
		t.Fatalf("AcceptTask: %v", err)
	}
	fx.deliver(t, taskID, worker)

	if _, err := fx.orch.ApproveTask(ctx, models.Actor{ID: "client-2", Role: models.RoleClient}, taskID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("other client approved: %v", err)
	}

	res, err := fx.orch.ApproveTask(ctx, client, taskID)
	if err != nil {
		t.Fatalf("ApproveTask: %v", err)
	}
	p := res.Payment
	if p == nil {
		t.Fatal("no payment returned")
	}
	if !p.PlatformFee.Equal(decimal.RequireFromString("15.00")) || !p.FreelancerPayout.Equal(decimal.RequireFromString("85.00")) {
		t.Fatalf("unexpected split: fee %s payout %s", p.PlatformFee, p.FreelancerPayout)
	}
	if !p.PlatformFee.Add(p.FreelancerPayout).Equal(p.TaskBudget) || p.EscrowStatus != models.EscrowStatusHeld {
		t.Fatalf("bad payment: %+v", p)
	}
	if !p.CreatedAt.Equal(start) {
		t.Fatalf("payment created at %v, want %v", p.CreatedAt, start)
	}
	if res.Task.Status != models.TaskStatusCompleted || !res.Task.AssignedTo("f1") {
		t.Fatalf("unexpected task: %+v", res.Task)
	}
	for _, m := range []models.Milestone{
		models.MilestoneAssigned, models.MilestoneStarted, models.MilestoneSubmittedWork,
		models.MilestoneDelivered, models.MilestoneCompleted,
	} {
		if _, ok := res.Task.WorkflowTimestamps[m]; !ok {
			t.Fatalf("milestone %s missing", m)
		}
	}
	if fx.workload(t, "f1") != 0 {
		t.Fatalf("workload = %d, want 0", fx.workload(t, "f1"))
	}

	var iste *models.InvalidStateTransitionError
	if _, err := fx.orch.ApproveTask(ctx, client, taskID); !errors.As(err, &iste) {
		t.Fatalf("second approval should fail, got %v", err)
	}
	stored, err := fx.orch.TaskPayment(ctx, client, taskID)
	if err != nil || stored.ID != p.ID {
		t.Fatalf("TaskPayment = %+v, %v", stored, err)
	}

	history, err := fx.orch.TaskHistory(ctx, client, taskID, 0)
	if err != nil {
		t.Fatalf("TaskHistory: %v", err)
	}
	if len(history) != 8 || history[0].ToStatus != models.TaskStatusCompleted || history[len(history)-1].Reason != "task_created" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRequestRevision_BoundedAndExtendsDeadline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))
	limit := 1
	deadline := start.Add(72 * time.Hour)
	taskID := fx.openTask(t, NewTask{RevisionLimit: &limit, Deadline: deadline})
	worker := freelancerActor("f1")

	if _, err := fx.orch.AcceptTask(ctx, worker, taskID); err != nil {
		t.Fatalf("AcceptTask: %v", err)
	}
	fx.deliver(t, taskID, worker)

	res, err := fx.orch.RequestRevision(ctx, client, taskID, "wrong colours")
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if res.Task.Status != models.TaskStatusInProgress || res.Task.RevisionsUsed != 1 {
		t.Fatalf("unexpected task: %+v", res.Task)
	}
	if want := deadline.Add(48 * time.Hour); !res.Task.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", res.Task.Deadline, want)
	}

	fx.deliver(t, taskID, worker)
	subs, _ := fx.store.ListSubmissions(ctx, taskID)
	if len(subs) != 2 || subs[0].SubmissionType != models.SubmissionTypeInitial ||
		subs[1].SubmissionType != models.SubmissionTypeRevision || subs[1].Version != 2 {
		t.Fatalf("unexpected submissions: %+v", subs)
	}

	before, _ := fx.store.GetTask(ctx, taskID)
	var rle *models.RevisionLimitExceededError
	if _, err := fx.orch.RequestRevision(ctx, client, taskID, "again"); !errors.As(err, &rle) {
		t.Fatalf("expected revision limit error, got %v", err)
	}
	if rle.Used != 1 || rle.Limit != 1 {
		t.Fatalf("unexpected error context: %+v", rle)
	}
	after, _ := fx.store.GetTask(ctx, taskID)
	if after.Status != models.TaskStatusDelivered || after.RevisionsUsed != 1 ||
		!after.Deadline.Equal(before.Deadline) || after.Version != before.Version {
		t.Fatalf("task changed after rejected revision: %+v", after)
	}
}

func TestCompleteQA_ReworkDoesNotUseRevision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))
	taskID := fx.openTask(t, NewTask{})
	worker := freelancerActor("f1")

	if _, err := fx.orch.AcceptTask(ctx, worker, taskID); err != nil {
		t.Fatalf("AcceptTask: %v", err)
	}
	if _, err := fx.orch.StartTask(ctx, worker, taskID); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if _, err := fx.orch.SubmitWork(ctx, worker, taskID, "v1"); err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}
	if _, err := fx.orch.BeginQA(ctx, admin, taskID); err != nil {
		t.Fatalf("BeginQA: %v", err)
	}
	res, err := fx.orch.CompleteQA(ctx, admin, taskID, false, "missing tests")
	if err != nil {
		t.Fatalf("CompleteQA: %v", err)
	}
	if res.Task.Status != models.TaskStatusRevisionRequested {
		t.Fatalf("status = %s", res.Task.Status)
	}
	res, err = fx.orch.ResumeWork(ctx, worker, taskID)
	if err != nil {
		t.Fatalf("ResumeWork: %v", err)
	}
	if res.Task.Status != models.TaskStatusInProgress || res.Task.RevisionsUsed != 0 {
		t.Fatalf("unexpected task: %+v", res.Task)
	}
}

func TestReassignTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2), coder("f2", 0, 2))
	taskID := fx.openTask(t, NewTask{})

	if _, err := fx.orch.AssignTask(ctx, admin, taskID, "f1"); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if _, err := fx.orch.StartTask(ctx, freelancerActor("f1"), taskID); err != nil {
		t.Fatalf("StartTask: %v", err)
	}

	var ve *models.ValidationError
	if _, err := fx.orch.ReassignTask(ctx, admin, taskID, "f1", ""); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := fx.orch.ReassignTask(ctx, client, taskID, "f2", ""); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	res, err := fx.orch.ReassignTask(ctx, admin, taskID, "f2", "missed check-ins")
	if err != nil {
		t.Fatalf("ReassignTask: %v", err)
	}
	if res.Task.Status != models.TaskStatusAssigned || !res.Task.AssignedTo("f2") || res.Task.ReassignmentCount != 1 {
		t.Fatalf("unexpected task: %+v", res.Task)
	}
	if fx.workload(t, "f1") != 0 || fx.workload(t, "f2") != 1 {
		t.Fatalf("workloads f1=%d f2=%d", fx.workload(t, "f1"), fx.workload(t, "f2"))
	}

	history, _ := fx.store.ListTaskEvents(ctx, taskID, 1)
	if len(history) != 1 || history[0].Reason != "missed check-ins" || history[0].Meta["previous_freelancer_id"] != "f1" {
		t.Fatalf("unexpected event: %+v", history)
	}
}

func TestAutoAssignTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	strong := coder("strong", 0, 2)
	strong.PerformanceScore = 95
	fx := newFixture(t, coder("weak", 0, 2), strong)

	taskID := fx.openTask(t, NewTask{})
	res, err := fx.orch.AutoAssignTask(ctx, admin, taskID)
	if err != nil {
		t.Fatalf("AutoAssignTask: %v", err)
	}
	if !res.Task.AssignedTo("strong") {
		t.Fatalf("assigned to %v", *res.Task.FreelancerID)
	}

	rustID := fx.openTask(t, NewTask{Category: "rust"})
	var nec *models.NoEligibleCandidateError
	if _, err := fx.orch.AutoAssignTask(ctx, admin, rustID); !errors.As(err, &nec) {
		t.Fatalf("expected no eligible candidate, got %v", err)
	}
	task, _ := fx.store.GetTask(ctx, rustID)
	if task.Status != models.TaskStatusUnderReview {
		t.Fatalf("status = %s", task.Status)
	}
}

func TestAutoAssignTask_CategoryIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))

	taskID := fx.openTask(t, NewTask{Category: " Go "})
	task, _ := fx.store.GetTask(ctx, taskID)
	if task.Category != "go" {
		t.Fatalf("category = %q, want %q", task.Category, "go")
	}

	res, err := fx.orch.AutoAssignTask(ctx, admin, taskID)
	if err != nil {
		t.Fatalf("AutoAssignTask: %v", err)
	}
	if !res.Task.AssignedTo("f1") {
		t.Fatalf("unexpected assignee: %v", res.Task.FreelancerID)
	}
}

func TestAutoAssignPending_UrgentFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 1))

	lowID := fx.openTask(t, NewTask{Priority: models.PriorityLow, Deadline: start.Add(24 * time.Hour)})
	urgentID := fx.openTask(t, NewTask{Priority: models.PriorityUrgent, Deadline: start.Add(96 * time.Hour)})

	if _, err := fx.orch.AutoAssignPending(ctx, client, 0); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	outcomes, err := fx.orch.AutoAssignPending(ctx, admin, 0)
	if err != nil {
		t.Fatalf("AutoAssignPending: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].TaskID != urgentID || outcomes[0].Err != nil {
		t.Fatalf("urgent task should be assigned first: %+v", outcomes[0])
	}
	if outcomes[1].TaskID != lowID || !errors.Is(outcomes[1].Err, models.ErrNoEligibleCandidate) {
		t.Fatalf("low task should find no capacity left: %+v", outcomes[1])
	}
}

func TestEffectFailureDoesNotUndoCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))
	taskID := fx.openTask(t, NewTask{})
	fx.sink.Fail = func(kind models.EffectKind) error {
		if kind == models.EffectNotification {
			return errors.New("mailer unavailable")
		}
		return nil
	}

	res, err := fx.orch.AcceptTask(ctx, freelancerActor("f1"), taskID)
	if err != nil {
		t.Fatalf("AcceptTask: %v", err)
	}
	var failed, delivered int
	for _, o := range res.Effects {
		if o.Failed() {
			failed++
		} else {
			delivered++
		}
	}
	if failed != 2 || delivered == 0 {
		t.Fatalf("failed=%d delivered=%d", failed, delivered)
	}

	task, _ := fx.store.GetTask(ctx, taskID)
	if task.Status != models.TaskStatusAssigned {
		t.Fatalf("commit lost: %s", task.Status)
	}
	if len(fx.sink.Audit()) == 0 {
		t.Fatal("audit should still be recorded")
	}
}

func TestCancelTask_Roles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))
	taskID := fx.openTask(t, NewTask{})
	worker := freelancerActor("f1")

	if _, err := fx.orch.CancelTask(ctx, worker, taskID, ""); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("unassigned freelancer cancelled: %v", err)
	}
	if _, err := fx.orch.AcceptTask(ctx, worker, taskID); err != nil {
		t.Fatalf("AcceptTask: %v", err)
	}
	if _, err := fx.orch.StartTask(ctx, worker, taskID); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if _, err := fx.orch.CancelTask(ctx, client, taskID, ""); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("client cancelled work in progress: %v", err)
	}

	res, err := fx.orch.CancelTask(ctx, admin, taskID, "policy violation")
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if res.Task.Status != models.TaskStatusCancelled || res.Task.FreelancerID != nil {
		t.Fatalf("unexpected task: %+v", res.Task)
	}
	if _, ok := res.Task.WorkflowTimestamps[models.MilestoneCancelled]; !ok {
		t.Fatal("cancelledAt missing")
	}
	if fx.workload(t, "f1") != 0 {
		t.Fatalf("workload = %d", fx.workload(t, "f1"))
	}

	var iste *models.InvalidStateTransitionError
	if _, err := fx.orch.CancelTask(ctx, admin, taskID, ""); !errors.As(err, &iste) {
		t.Fatalf("cancel of cancelled task: %v", err)
	}
}

func TestDispute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))
	taskID := fx.openTask(t, NewTask{})
	worker := freelancerActor("f1")

	if _, err := fx.orch.AcceptTask(ctx, worker, taskID); err != nil {
		t.Fatalf("AcceptTask: %v", err)
	}
	fx.deliver(t, taskID, worker)

	if _, err := fx.orch.OpenDispute(ctx, freelancerActor("f9"), taskID, "unpaid"); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("outsider opened dispute: %v", err)
	}
	res, err := fx.orch.OpenDispute(ctx, worker, taskID, "client unresponsive")
	if err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	if res.Task.Status != models.TaskStatusDisputed {
		t.Fatalf("status = %s", res.Task.Status)
	}

	res, err = fx.orch.ResolveDispute(ctx, admin, taskID, DisputeRework, "")
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if res.Task.Status != models.TaskStatusQAReview || !res.Task.AssignedTo("f1") {
		t.Fatalf("unexpected task: %+v", res.Task)
	}

	if _, err := fx.orch.CompleteQA(ctx, admin, taskID, true, ""); err != nil {
		t.Fatalf("CompleteQA: %v", err)
	}
	if _, err := fx.orch.OpenDispute(ctx, client, taskID, "quality"); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	res, err = fx.orch.ResolveDispute(ctx, admin, taskID, DisputeCancel, "refund")
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if res.Task.Status != models.TaskStatusCancelled || res.Task.FreelancerID != nil || fx.workload(t, "f1") != 0 {
		t.Fatalf("unexpected task after cancel: %+v", res.Task)
	}
}

func TestVisibility(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, coder("f1", 0, 2))
	taskID := fx.openTask(t, NewTask{})
	draft, err := fx.orch.CreateTask(ctx, client, NewTask{
		Title: "Draft", Category: "go", Budget: decimal.NewFromInt(40), Deadline: start.Add(time.Hour * 30),
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if _, err := fx.orch.GetTask(ctx, freelancerActor("f1"), taskID); err != nil {
		t.Fatalf("open task should be visible: %v", err)
	}
	if _, err := fx.orch.GetTask(ctx, freelancerActor("f1"), draft.Task.ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("draft visible to freelancer: %v", err)
	}
	if _, err := fx.orch.GetTask(ctx, models.Actor{ID: "client-2", Role: models.RoleClient}, taskID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("other client sees task: %v", err)
	}

	tasks, err := fx.orch.ListTasks(ctx, models.Actor{ID: "client-2", Role: models.RoleClient}, models.TaskFilter{})
	if err != nil || len(tasks) != 0 {
		t.Fatalf("other client listing = %d, %v", len(tasks), err)
	}
	tasks, _ = fx.orch.ListTasks(ctx, client, models.TaskFilter{})
	if len(tasks) != 2 {
		t.Fatalf("owner listing = %d", len(tasks))
	}
}
