package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"solvermarket/internal/config"
	"solvermarket/internal/domain"
	"solvermarket/internal/engine/access"
	"solvermarket/internal/events"
	"solvermarket/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func newID() string {
	return uuid.NewString()
}

func validProjectStatus(s string) bool {
	switch s {
	case "open", "assigned", "completed", "cancelled":
		return true
	}
	return false
}

func validTaskStatus(s string) bool {
	switch s {
	case "pending", "in_progress", "submitted", "completed", "rejected":
		return true
	}
	return false
}

// ---- projects ----

func (e Engine) CreateProject(ctx context.Context, p access.Principal, title, description string) (domain.Project, error) {
	if err := access.Require(p, access.RoleBuyer); err != nil {
		return domain.Project{}, err
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return domain.Project{}, access.ValidationError{Reason: "title is required"}
	}
	if description == "" {
		return domain.Project{}, access.ValidationError{Reason: "description is required"}
	}
	now := e.nowRFC3339()
	proj := domain.Project{
		ID:          newID(),
		BuyerID:     p.ID,
		Title:       title,
		Description: description,
		Status:      "open",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, proj); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeProjectCreated, proj.ID, "project", proj.ID, p.ID, events.EventPayload{"title": proj.Title}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return proj, nil
}

// canSeeProject applies the read visibility rule: owning buyer, any solver
// while the project is open, the assigned solver afterwards, admin always.
func canSeeProject(p access.Principal, proj domain.Project) bool {
	if p.IsAdmin() {
		return true
	}
	if p.Role == access.RoleBuyer {
		return proj.BuyerID == p.ID
	}
	if proj.Status == "open" {
		return true
	}
	return proj.AssignedSolverID != nil && *proj.AssignedSolverID == p.ID
}

func (e Engine) GetProject(ctx context.Context, p access.Principal, id string) (domain.ProjectView, error) {
	view, err := e.Repo.GetProjectView(ctx, id)
	if err != nil {
		return domain.ProjectView{}, err
	}
	if !canSeeProject(p, view.Project) {
		return domain.ProjectView{}, access.ForbiddenError{Reason: "not allowed to view this project"}
	}
	return view, nil
}

func (e Engine) ListProjects(ctx context.Context, p access.Principal) ([]domain.ProjectView, error) {
	var f repo.ProjectFilters
	switch p.Role {
	case access.RoleBuyer:
		f.BuyerID = p.ID
	case access.RoleSolver:
		f.SolverID = p.ID
	}
	return e.Repo.ListProjectViews(ctx, f)
}

// ProjectPatch is the partial update a project owner may apply.
type ProjectPatch struct {
	Title       *string
	Description *string
	Status      *string
}

func (e Engine) UpdateProject(ctx context.Context, p access.Principal, id string, patch ProjectPatch) (domain.Project, error) {
	proj, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if proj.BuyerID != p.ID {
		return domain.Project{}, access.ForbiddenError{Reason: "only the project owner may update it"}
	}
	if patch.Title == nil && patch.Description == nil && patch.Status == nil {
		return domain.Project{}, access.ValidationError{Reason: "no fields to update"}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Project{}, access.ValidationError{Reason: "title cannot be empty"}
	}
	if patch.Status != nil && !validProjectStatus(*patch.Status) {
		return domain.Project{}, access.ValidationError{Reason: "invalid status"}
	}
	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProject(ctx, tx, id, repo.ProjectPatch{Title: patch.Title, Description: patch.Description, Status: patch.Status}, now); err != nil {
		return domain.Project{}, err
	}
	updated, err := e.Repo.GetProjectTx(ctx, tx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeProjectUpdated, id, "project", id, p.ID, events.EventPayload{"status": updated.Status}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return updated, nil
}

func (e Engine) DeleteProject(ctx context.Context, p access.Principal, id string) error {
	proj, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if proj.BuyerID != p.ID {
		return access.ForbiddenError{Reason: "only the project owner may delete it"}
	}
	n, err := e.Repo.CountProjectTasks(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return access.ConflictError{Reason: "project has tasks and cannot be deleted"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// requests cascade with the project row
	if err := e.Repo.DeleteProjectTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TypeProjectDeleted, id, "project", id, p.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- requests ----

func (e Engine) SubmitRequest(ctx context.Context, p access.Principal, projectID, message string) (domain.Request, error) {
	if err := access.Require(p, access.RoleSolver); err != nil {
		return domain.Request{}, err
	}
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Request{}, err
	}
	if proj.Status != "open" {
		return domain.Request{}, access.InvalidStateError{Entity: "project", State: proj.Status, Op: "request"}
	}
	exists, err := e.Repo.RequestExists(ctx, projectID, p.ID)
	if err != nil {
		return domain.Request{}, err
	}
	if exists {
		return domain.Request{}, access.ConflictError{Reason: "request already submitted for this project"}
	}
	rq := domain.Request{
		ID:        newID(),
		ProjectID: projectID,
		SolverID:  p.ID,
		Message:   strings.TrimSpace(message),
		Status:    "pending",
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRequest(ctx, tx, rq); err != nil {
		// the unique index backs up the pre-check under concurrency
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.Request{}, access.ConflictError{Reason: "request already submitted for this project"}
		}
		return domain.Request{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRequestSubmitted, projectID, "request", rq.ID, p.ID, nil); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	return rq, nil
}

func (e Engine) ListProjectRequests(ctx context.Context, p access.Principal, projectID string) ([]domain.RequestView, error) {
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj.BuyerID != p.ID && !p.IsAdmin() {
		return nil, access.ForbiddenError{Reason: "only the project owner may list its requests"}
	}
	return e.Repo.ListProjectRequestViews(ctx, projectID)
}

func (e Engine) ListMyRequests(ctx context.Context, p access.Principal) ([]domain.RequestView, error) {
	if err := access.Require(p, access.RoleSolver); err != nil {
		return nil, err
	}
	return e.Repo.ListSolverRequestViews(ctx, p.ID)
}

// AcceptRequest runs the assignment transition: the chosen request becomes
// accepted, every other pending request on the project becomes rejected, and
// the project flips to assigned, all in one transaction. The project update
// is conditioned on status still being open, so losing a race leaves the
// database untouched.
func (e Engine) AcceptRequest(ctx context.Context, p access.Principal, requestID string) (domain.Request, error) {
	rq, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	proj, err := e.Repo.GetProject(ctx, rq.ProjectID)
	if err != nil {
		return domain.Request{}, err
	}
	if proj.BuyerID != p.ID {
		return domain.Request{}, access.ForbiddenError{Reason: "only the project owner may accept requests"}
	}
	if proj.Status != "open" {
		return domain.Request{}, access.InvalidStateError{Entity: "project", State: proj.Status, Op: "accept"}
	}
	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRequestStatusTx(ctx, tx, requestID, "accepted"); err != nil {
		return domain.Request{}, err
	}
	rejected, err := e.Repo.RejectOtherPendingTx(ctx, tx, rq.ProjectID, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	assigned, err := e.Repo.AssignProjectTx(ctx, tx, rq.ProjectID, rq.SolverID, now)
	if err != nil {
		return domain.Request{}, err
	}
	if !assigned {
		// a concurrent accept got there first
		current, err := e.Repo.GetProjectTx(ctx, tx, rq.ProjectID)
		if err != nil {
			return domain.Request{}, err
		}
		return domain.Request{}, access.InvalidStateError{Entity: "project", State: current.Status, Op: "accept"}
	}
	if err := e.Events.Append(ctx, tx, events.TypeRequestAccepted, rq.ProjectID, "request", requestID, p.ID, events.EventPayload{"rejected": rejected}); err != nil {
		return domain.Request{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeProjectAssigned, rq.ProjectID, "project", rq.ProjectID, p.ID, events.EventPayload{"solver_id": rq.SolverID}); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	rq.Status = "accepted"
	return rq, nil
}

func (e Engine) RejectRequest(ctx context.Context, p access.Principal, requestID string) (domain.Request, error) {
	rq, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	proj, err := e.Repo.GetProject(ctx, rq.ProjectID)
	if err != nil {
		return domain.Request{}, err
	}
	if proj.BuyerID != p.ID {
		return domain.Request{}, access.ForbiddenError{Reason: "only the project owner may reject requests"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRequestStatusTx(ctx, tx, requestID, "rejected"); err != nil {
		return domain.Request{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRequestRejected, rq.ProjectID, "request", requestID, p.ID, nil); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	rq.Status = "rejected"
	return rq, nil
}

// ---- tasks ----

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	Deadline    string
}

func (e Engine) CreateTask(ctx context.Context, p access.Principal, opts TaskCreateOptions) (domain.Task, error) {
	if err := access.Require(p, access.RoleSolver); err != nil {
		return domain.Task{}, err
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, access.ValidationError{Reason: "title is required"}
	}
	proj, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	if proj.AssignedSolverID == nil || *proj.AssignedSolverID != p.ID {
		return domain.Task{}, access.ForbiddenError{Reason: "only the assigned solver may create tasks"}
	}
	if proj.Status != "assigned" {
		return domain.Task{}, access.InvalidStateError{Entity: "project", State: proj.Status, Op: "create task"}
	}
	now := e.nowRFC3339()
	t := domain.Task{
		ID:          newID(),
		ProjectID:   opts.ProjectID,
		Title:       strings.TrimSpace(opts.Title),
		Description: strings.TrimSpace(opts.Description),
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.Deadline != "" {
		if _, err := time.Parse(time.RFC3339, opts.Deadline); err != nil {
			return domain.Task{}, access.ValidationError{Reason: "deadline must be RFC3339"}
		}
		t.Deadline = &opts.Deadline
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeTaskCreated, t.ProjectID, "task", t.ID, p.ID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, p access.Principal, projectID string) ([]domain.Task, error) {
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	allowed := p.IsAdmin() || proj.BuyerID == p.ID ||
		(proj.AssignedSolverID != nil && *proj.AssignedSolverID == p.ID)
	if !allowed {
		return nil, access.ForbiddenError{Reason: "not allowed to view this project's tasks"}
	}
	return e.Repo.ListProjectTasks(ctx, projectID)
}

// TaskPatch is the partial update the assigned solver may apply.
type TaskPatch struct {
	Title       *string
	Description *string
	Deadline    **string
	Status      *string
}

func (e Engine) UpdateTask(ctx context.Context, p access.Principal, taskID string, patch TaskPatch) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	proj, err := e.Repo.GetProject(ctx, t.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	if proj.AssignedSolverID == nil || *proj.AssignedSolverID != p.ID {
		return domain.Task{}, access.ForbiddenError{Reason: "only the assigned solver may update tasks"}
	}
	if patch.Title == nil && patch.Description == nil && patch.Deadline == nil && patch.Status == nil {
		return domain.Task{}, access.ValidationError{Reason: "no fields to update"}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Task{}, access.ValidationError{Reason: "title cannot be empty"}
	}
	if patch.Status != nil && !validTaskStatus(*patch.Status) {
		return domain.Task{}, access.ValidationError{Reason: "invalid status"}
	}
	if patch.Deadline != nil && *patch.Deadline != nil {
		if _, err := time.Parse(time.RFC3339, **patch.Deadline); err != nil {
			return domain.Task{}, access.ValidationError{Reason: "deadline must be RFC3339"}
		}
	}
	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTask(ctx, tx, taskID, repo.TaskPatch{Title: patch.Title, Description: patch.Description, Deadline: patch.Deadline, Status: patch.Status}, now); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeTaskUpdated, t.ProjectID, "task", taskID, p.ID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, taskID)
}

// ---- submissions ----

// UploadSubmission records an already stored archive against a task. The
// task moves to submitted whatever its previous status, so a re-upload after
// rejection reopens the review.
func (e Engine) UploadSubmission(ctx context.Context, p access.Principal, taskID, filePath, originalFilename, notes string) (domain.Submission, error) {
	if err := access.Require(p, access.RoleSolver); err != nil {
		return domain.Submission{}, err
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Submission{}, err
	}
	proj, err := e.Repo.GetProject(ctx, t.ProjectID)
	if err != nil {
		return domain.Submission{}, err
	}
	if proj.AssignedSolverID == nil || *proj.AssignedSolverID != p.ID {
		return domain.Submission{}, access.ForbiddenError{Reason: "only the assigned solver may upload submissions"}
	}
	now := e.nowRFC3339()
	s := domain.Submission{
		ID:               newID(),
		TaskID:           taskID,
		FilePath:         filePath,
		OriginalFilename: originalFilename,
		Notes:            strings.TrimSpace(notes),
		Status:           "pending_review",
		SubmittedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Submission{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSubmissionTx(ctx, tx, s); err != nil {
		return domain.Submission{}, err
	}
	if err := e.Repo.UpdateTaskStatusTx(ctx, tx, taskID, "submitted", now); err != nil {
		return domain.Submission{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeSubmissionCreated, t.ProjectID, "submission", s.ID, p.ID, events.EventPayload{"task_id": taskID, "filename": originalFilename}); err != nil {
		return domain.Submission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Submission{}, err
	}
	return s, nil
}

func (e Engine) ListSubmissions(ctx context.Context, p access.Principal, taskID string) ([]domain.Submission, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	proj, err := e.Repo.GetProject(ctx, t.ProjectID)
	if err != nil {
		return nil, err
	}
	allowed := p.IsAdmin() || proj.BuyerID == p.ID ||
		(proj.AssignedSolverID != nil && *proj.AssignedSolverID == p.ID)
	if !allowed {
		return nil, access.ForbiddenError{Reason: "not allowed to view this task's submissions"}
	}
	return e.Repo.ListTaskSubmissions(ctx, taskID)
}

// ReviewSubmission applies the buyer's verdict. Accepting completes the
// task, rejecting rejects it; the submission and task rows change in one
// transaction.
func (e Engine) ReviewSubmission(ctx context.Context, p access.Principal, submissionID, decision, reviewNotes string) (domain.Submission, error) {
	if decision != "accepted" && decision != "rejected" {
		return domain.Submission{}, access.ValidationError{Reason: "decision must be accepted or rejected"}
	}
	reviewNotes = strings.TrimSpace(reviewNotes)
	if decision == "rejected" && reviewNotes == "" {
		return domain.Submission{}, access.ValidationError{Reason: "review notes are required to reject"}
	}
	s, err := e.Repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	t, err := e.Repo.GetTask(ctx, s.TaskID)
	if err != nil {
		return domain.Submission{}, err
	}
	proj, err := e.Repo.GetProject(ctx, t.ProjectID)
	if err != nil {
		return domain.Submission{}, err
	}
	if proj.BuyerID != p.ID {
		return domain.Submission{}, access.ForbiddenError{Reason: "only the project owner may review submissions"}
	}
	if s.Status != "pending_review" {
		return domain.Submission{}, access.InvalidStateError{Entity: "submission", State: s.Status, Op: "review"}
	}
	now := e.nowRFC3339()
	taskStatus := "completed"
	if decision == "rejected" {
		taskStatus = "rejected"
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Submission{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.ReviewSubmissionTx(ctx, tx, submissionID, decision, reviewNotes, now); err != nil {
		return domain.Submission{}, err
	}
	if err := e.Repo.UpdateTaskStatusTx(ctx, tx, s.TaskID, taskStatus, now); err != nil {
		return domain.Submission{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeSubmissionReviewed, t.ProjectID, "submission", submissionID, p.ID, events.EventPayload{"decision": decision}); err != nil {
		return domain.Submission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Submission{}, err
	}
	s.Status = decision
	s.ReviewNotes = reviewNotes
	s.ReviewedAt = &now
	return s, nil
}

// ---- users ----

func (e Engine) CreateUser(ctx context.Context, email, name, role string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return domain.User{}, access.ValidationError{Reason: "email is required"}
	}
	if strings.TrimSpace(name) == "" {
		return domain.User{}, access.ValidationError{Reason: "name is required"}
	}
	if !access.ValidRole(role) {
		return domain.User{}, access.ValidationError{Reason: "invalid role"}
	}
	u := domain.User{
		ID:        newID(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      role,
		CreatedAt: e.nowRFC3339(),
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.User{}, access.ConflictError{Reason: "email already registered"}
		}
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) ListUsers(ctx context.Context, p access.Principal) ([]domain.User, error) {
	if err := access.Require(p, access.RoleAdmin); err != nil {
		return nil, err
	}
	return e.Repo.ListUsers(ctx)
}

func (e Engine) GetUser(ctx context.Context, p access.Principal, id string) (domain.User, error) {
	if id != p.ID && !p.IsAdmin() {
		return domain.User{}, access.ForbiddenError{Reason: "not allowed to view this user"}
	}
	return e.Repo.GetUser(ctx, id)
}

func (e Engine) SetUserRole(ctx context.Context, p access.Principal, id, role string) (domain.User, error) {
	if err := access.Require(p, access.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	if !access.ValidRole(role) {
		return domain.User{}, access.ValidationError{Reason: "invalid role"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateUserRole(ctx, tx, id, role); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeUserRoleChanged, "", "user", id, p.ID, events.EventPayload{"role": role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return e.Repo.GetUser(ctx, id)
}

// ---- events ----

func (e Engine) ProjectEvents(ctx context.Context, p access.Principal, projectID string, limit int) ([]domain.Event, error) {
	proj, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canSeeProject(p, proj) {
		return nil, access.ForbiddenError{Reason: "not allowed to view this project"}
	}
	return e.Repo.LatestEvents(ctx, limit, projectID, "")
}
