package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"solvermarket/internal/config"
	"solvermarket/internal/db"
	"solvermarket/internal/domain"
	"solvermarket/internal/engine"
	"solvermarket/internal/engine/access"
	"solvermarket/internal/migrate"
	"solvermarket/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Admin  access.Principal
	Buyer  access.Principal
	Solver access.Principal
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	env := testEnv{Engine: eng, Ctx: ctx}
	env.Admin = seedUser(t, env, "admin@example.com", "Admin", "admin")
	env.Buyer = seedUser(t, env, "buyer@example.com", "Buyer", "buyer")
	env.Solver = seedUser(t, env, "solver@example.com", "Solver", "solver")
	return env
}

func seedUser(t *testing.T, env testEnv, email, name, role string) access.Principal {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, email, name, role)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return access.Principal{ID: u.ID, Role: u.Role, Name: u.Name}
}

func (env testEnv) newSolver(t *testing.T, n int) access.Principal {
	t.Helper()
	return seedUser(t, env, fmt.Sprintf("solver%d@example.com", n), fmt.Sprintf("Solver %d", n), "solver")
}

func (env testEnv) openProject(t *testing.T) domain.Project {
	t.Helper()
	proj, err := env.Engine.CreateProject(env.Ctx, env.Buyer, "Build a parser", "Parse the things")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return proj
}

// assignedProject creates a project, bids with env.Solver and accepts the bid.
func (env testEnv) assignedProject(t *testing.T) domain.Project {
	t.Helper()
	proj := env.openProject(t)
	rq, err := env.Engine.SubmitRequest(env.Ctx, env.Solver, proj.ID, "pick me")
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	if _, err := env.Engine.AcceptRequest(env.Ctx, env.Buyer, rq.ID); err != nil {
		t.Fatalf("accept request: %v", err)
	}
	got, err := env.Engine.Repo.GetProject(env.Ctx, proj.ID)
	if err != nil {
		t.Fatalf("reload project: %v", err)
	}
	return got
}

func TestCreateProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateProject(env.Ctx, env.Solver, "t", "d"); !isForbidden(err) {
		t.Fatalf("expected forbidden for solver, got %v", err)
	}
	if _, err := env.Engine.CreateProject(env.Ctx, env.Buyer, "   ", "d"); !isValidation(err) {
		t.Fatalf("expected validation error for empty title, got %v", err)
	}
	proj := env.openProject(t)
	if proj.Status != "open" {
		t.Fatalf("expected open, got %s", proj.Status)
	}
	if proj.BuyerID != env.Buyer.ID {
		t.Fatalf("unexpected buyer id")
	}
}

func TestProjectVisibility(t *testing.T) {
	env := newTestEnv(t)
	proj := env.openProject(t)

	// any solver sees an open project
	if _, err := env.Engine.GetProject(env.Ctx, env.Solver, proj.ID); err != nil {
		t.Fatalf("solver view of open project: %v", err)
	}

	otherBuyer := seedUser(t, env, "buyer2@example.com", "Buyer Two", "buyer")
	if _, err := env.Engine.GetProject(env.Ctx, otherBuyer, proj.ID); !isForbidden(err) {
		t.Fatalf("expected forbidden for other buyer, got %v", err)
	}

	assigned := env.assignedProject(t)
	outsider := env.newSolver(t, 9)
	if _, err := env.Engine.GetProject(env.Ctx, outsider, assigned.ID); !isForbidden(err) {
		t.Fatalf("expected forbidden for outsider on assigned project, got %v", err)
	}
	if _, err := env.Engine.GetProject(env.Ctx, env.Solver, assigned.ID); err != nil {
		t.Fatalf("assigned solver view: %v", err)
	}
	if _, err := env.Engine.GetProject(env.Ctx, env.Admin, assigned.ID); err != nil {
		t.Fatalf("admin view: %v", err)
	}
}

func TestAcceptRequestAssignsAndRejectsOthers(t *testing.T) {
	env := newTestEnv(t)
	proj := env.openProject(t)
	s2 := env.newSolver(t, 2)
	s3 := env.newSolver(t, 3)

	r1, err := env.Engine.SubmitRequest(env.Ctx, env.Solver, proj.ID, "me")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := env.Engine.SubmitRequest(env.Ctx, s2, proj.ID, "no me")
	if err != nil {
		t.Fatal(err)
	}
	r3, err := env.Engine.SubmitRequest(env.Ctx, s3, proj.ID, "")
	if err != nil {
		t.Fatal(err)
	}

	accepted, err := env.Engine.AcceptRequest(env.Ctx, env.Buyer, r2.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != "accepted" {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}

	got, err := env.Engine.Repo.GetProject(env.Ctx, proj.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "assigned" {
		t.Fatalf("expected assigned, got %s", got.Status)
	}
	if got.AssignedSolverID == nil || *got.AssignedSolverID != s2.ID {
		t.Fatalf("expected solver %s assigned", s2.ID)
	}
	for _, id := range []string{r1.ID, r3.ID} {
		rq, err := env.Engine.Repo.GetRequest(env.Ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if rq.Status != "rejected" {
			t.Fatalf("expected request %s rejected, got %s", id, rq.Status)
		}
	}
}

func TestAcceptRequestOnAssignedProject(t *testing.T) {
	env := newTestEnv(t)
	proj := env.openProject(t)
	s2 := env.newSolver(t, 2)

	r1, err := env.Engine.SubmitRequest(env.Ctx, env.Solver, proj.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := env.Engine.SubmitRequest(env.Ctx, s2, proj.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AcceptRequest(env.Ctx, env.Buyer, r1.ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.AcceptRequest(env.Ctx, env.Buyer, r2.ID)
	if !isInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	// the losing accept left nothing behind
	got, err := env.Engine.Repo.GetProject(env.Ctx, proj.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedSolverID == nil || *got.AssignedSolverID != env.Solver.ID {
		t.Fatalf("assignment changed by failed accept")
	}
	rq, err := env.Engine.Repo.GetRequest(env.Ctx, r2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rq.Status != "rejected" {
		t.Fatalf("expected r2 still rejected, got %s", rq.Status)
	}
}

func TestAcceptRequestOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	proj := env.openProject(t)
	rq, err := env.Engine.SubmitRequest(env.Ctx, env.Solver, proj.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	otherBuyer := seedUser(t, env, "buyer2@example.com", "Buyer Two", "buyer")
	if _, err := env.Engine.AcceptRequest(env.Ctx, otherBuyer, rq.ID); !isForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDuplicateRequestConflict(t *testing.T) {
	env := newTestEnv(t)
	proj := env.openProject(t)
	if _, err := env.Engine.SubmitRequest(env.Ctx, env.Solver, proj.ID, "one"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.SubmitRequest(env.Ctx, env.Solver, proj.ID, "two")
	var conflict access.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRequestOnNonOpenProject(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	other := env.newSolver(t, 2)
	if _, err := env.Engine.SubmitRequest(env.Ctx, other, proj.ID, ""); !isInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := env.Engine.SubmitRequest(env.Ctx, env.Buyer, proj.ID, ""); !isForbidden(err) {
		t.Fatalf("expected forbidden for buyer, got %v", err)
	}
}

func TestCreateTaskGates(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)

	if _, err := env.Engine.CreateTask(env.Ctx, env.Buyer, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "t"}); !isForbidden(err) {
		t.Fatalf("expected forbidden for buyer, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "  "}); !isValidation(err) {
		t.Fatalf("expected validation for empty title, got %v", err)
	}
	other := env.newSolver(t, 2)
	if _, err := env.Engine.CreateTask(env.Ctx, other, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "t"}); !isForbidden(err) {
		t.Fatalf("expected forbidden for unassigned solver, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "t", Deadline: "not-a-time"}); !isValidation(err) {
		t.Fatalf("expected validation for bad deadline, got %v", err)
	}

	task, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{
		ProjectID: proj.ID,
		Title:     "Write tests",
		Deadline:  "2024-02-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "pending" {
		t.Fatalf("expected pending, got %s", task.Status)
	}
	if task.Deadline == nil || *task.Deadline != "2024-02-01T00:00:00Z" {
		t.Fatalf("deadline not stored")
	}
}

func TestCreateTaskRequiresAssignedStatus(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	status := "completed"
	if _, err := env.Engine.UpdateProject(env.Ctx, env.Buyer, proj.ID, engine.ProjectPatch{Status: &status}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "late"})
	if !isInvalidState(err) {
		t.Fatalf("expected invalid state on completed project, got %v", err)
	}
}

func TestUpdateTaskDeadlineClear(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{
		ProjectID: proj.ID, Title: "t", Deadline: "2024-02-01T00:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	var none *string
	task, err = env.Engine.UpdateTask(env.Ctx, env.Solver, task.ID, engine.TaskPatch{Deadline: &none})
	if err != nil {
		t.Fatalf("clear deadline: %v", err)
	}
	if task.Deadline != nil {
		t.Fatalf("expected deadline cleared")
	}
	status := "in_progress"
	task, err = env.Engine.UpdateTask(env.Ctx, env.Solver, task.ID, engine.TaskPatch{Status: &status})
	if err != nil || task.Status != "in_progress" {
		t.Fatalf("to in_progress: %v", err)
	}
}

func TestUploadForcesSubmitted(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "t"})
	if err != nil {
		t.Fatal(err)
	}
	sub, err := env.Engine.UploadSubmission(env.Ctx, env.Solver, task.ID, "uploads/a.zip", "a.zip", "first try")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if sub.Status != "pending_review" {
		t.Fatalf("expected pending_review, got %s", sub.Status)
	}
	task, err = env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != "submitted" {
		t.Fatalf("expected submitted, got %s", task.Status)
	}

	// a rejected task reopens on re-upload
	if _, err := env.Engine.ReviewSubmission(env.Ctx, env.Buyer, sub.ID, "rejected", "needs work"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UploadSubmission(env.Ctx, env.Solver, task.ID, "uploads/b.zip", "b.zip", "second try"); err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	task, _ = env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if task.Status != "submitted" {
		t.Fatalf("expected submitted after re-upload, got %s", task.Status)
	}
}

func TestReviewSubmission(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "t"})
	if err != nil {
		t.Fatal(err)
	}
	sub, err := env.Engine.UploadSubmission(env.Ctx, env.Solver, task.ID, "uploads/a.zip", "a.zip", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.ReviewSubmission(env.Ctx, env.Buyer, sub.ID, "maybe", ""); !isValidation(err) {
		t.Fatalf("expected validation for bad decision, got %v", err)
	}
	if _, err := env.Engine.ReviewSubmission(env.Ctx, env.Buyer, sub.ID, "rejected", "  "); !isValidation(err) {
		t.Fatalf("expected validation for empty reject notes, got %v", err)
	}
	if _, err := env.Engine.ReviewSubmission(env.Ctx, env.Solver, sub.ID, "accepted", ""); !isForbidden(err) {
		t.Fatalf("expected forbidden for solver, got %v", err)
	}

	reviewed, err := env.Engine.ReviewSubmission(env.Ctx, env.Buyer, sub.ID, "accepted", "nice")
	if err != nil {
		t.Fatalf("accept review: %v", err)
	}
	if reviewed.Status != "accepted" || reviewed.ReviewedAt == nil {
		t.Fatalf("unexpected review result: %+v", reviewed)
	}
	task, _ = env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if task.Status != "completed" {
		t.Fatalf("expected completed, got %s", task.Status)
	}

	// a reviewed submission cannot be reviewed again
	if _, err := env.Engine.ReviewSubmission(env.Ctx, env.Buyer, sub.ID, "rejected", "changed my mind"); !isInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestRejectReviewRejectsTask(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "t"})
	if err != nil {
		t.Fatal(err)
	}
	sub, err := env.Engine.UploadSubmission(env.Ctx, env.Solver, task.ID, "uploads/a.zip", "a.zip", "")
	if err != nil {
		t.Fatal(err)
	}
	reviewed, err := env.Engine.ReviewSubmission(env.Ctx, env.Buyer, sub.ID, "rejected", "missing docs")
	if err != nil {
		t.Fatal(err)
	}
	if reviewed.ReviewNotes != "missing docs" {
		t.Fatalf("review notes not stored")
	}
	task, _ = env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if task.Status != "rejected" {
		t.Fatalf("expected rejected, got %s", task.Status)
	}
}

func TestDeleteProject(t *testing.T) {
	env := newTestEnv(t)
	proj := env.openProject(t)
	rq, err := env.Engine.SubmitRequest(env.Ctx, env.Solver, proj.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteProject(env.Ctx, env.Buyer, proj.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetRequest(env.Ctx, rq.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected request cascade, got %v", err)
	}
}

func TestDeleteProjectBlockedByTasks(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	if _, err := env.Engine.CreateTask(env.Ctx, env.Solver, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "t"}); err != nil {
		t.Fatal(err)
	}
	err := env.Engine.DeleteProject(env.Ctx, env.Buyer, proj.ID)
	var conflict access.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSetUserRole(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SetUserRole(env.Ctx, env.Buyer, env.Solver.ID, "buyer"); !isForbidden(err) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}
	u, err := env.Engine.SetUserRole(env.Ctx, env.Admin, env.Solver.ID, "buyer")
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if u.Role != "buyer" {
		t.Fatalf("expected buyer, got %s", u.Role)
	}
}

func TestDuplicateEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateUser(env.Ctx, "Buyer@Example.com", "Again", "buyer")
	var conflict access.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	proj := env.assignedProject(t)
	events, err := env.Engine.ProjectEvents(env.Ctx, env.Buyer, proj.ID, 50)
	if err != nil {
		t.Fatalf("project events: %v", err)
	}
	types := map[string]bool{}
	for _, evt := range events {
		types[evt.Type] = true
	}
	for _, want := range []string{"project.created", "request.submitted", "request.accepted", "project.assigned"} {
		if !types[want] {
			t.Fatalf("missing event %s, got %v", want, types)
		}
	}
}

func isForbidden(err error) bool {
	var forbidden access.ForbiddenError
	return errors.As(err, &forbidden)
}

func isValidation(err error) bool {
	var validation access.ValidationError
	return errors.As(err, &validation)
}

func isInvalidState(err error) bool {
	var invalid access.InvalidStateError
	return errors.As(err, &invalid)
}
