package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"solvermarket/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

// ---- projects ----

const projectCols = `id,buyer_id,title,description,status,assigned_solver_id,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var solver sql.NullString
	err := scan(&p.ID, &p.BuyerID, &p.Title, &p.Description, &p.Status, &solver, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if solver.Valid {
		p.AssignedSolverID = &solver.String
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(`+projectCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.BuyerID, p.Title, p.Description, p.Status, nullableStringPtr(p.AssignedSolverID), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id).Scan)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return scanProject(tx.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id).Scan)
}

// ProjectPatch carries optional fields for a partial project update.
type ProjectPatch struct {
	Title       *string
	Description *string
	Status      *string
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, id string, patch ProjectPatch, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if patch.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *patch.Status)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignProjectTx flips an open project to assigned and records the solver.
// It touches the row only while status is still open, so a concurrent accept
// that already assigned the project leaves zero rows affected.
func (r Repo) AssignProjectTx(ctx context.Context, tx *sql.Tx, projectID, solverID, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE projects SET status='assigned', assigned_solver_id=?, updated_at=? WHERE id=? AND status='open'`,
		solverID, updatedAt, projectID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) DeleteProjectTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountProjectTasks(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}

// ---- requests ----

const requestCols = `id,project_id,solver_id,message,status,created_at`

func scanRequest(scan func(dest ...any) error) (domain.Request, error) {
	var rq domain.Request
	var msg sql.NullString
	err := scan(&rq.ID, &rq.ProjectID, &rq.SolverID, &msg, &rq.Status, &rq.CreatedAt)
	if err == sql.ErrNoRows {
		return rq, ErrNotFound
	}
	if err != nil {
		return rq, err
	}
	if msg.Valid {
		rq.Message = msg.String
	}
	return rq, nil
}

func (r Repo) InsertRequest(ctx context.Context, tx *sql.Tx, rq domain.Request) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO requests(`+requestCols+`) VALUES (?,?,?,?,?,?)`,
		rq.ID, rq.ProjectID, rq.SolverID, rq.Message, rq.Status, rq.CreatedAt)
	return err
}

func (r Repo) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	return scanRequest(r.DB.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id=?`, id).Scan)
}

func (r Repo) RequestExists(ctx context.Context, projectID, solverID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE project_id=? AND solver_id=? LIMIT 1`, projectID, solverID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) UpdateRequestStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE requests SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RejectOtherPendingTx marks every pending request on the project, except the
// accepted one, as rejected. Returns the rejected request IDs so the caller
// can log them.
func (r Repo) RejectOtherPendingTx(ctx context.Context, tx *sql.Tx, projectID, acceptedID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM requests WHERE project_id=? AND id != ? AND status='pending'`, projectID, acceptedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		_, err = tx.ExecContext(ctx, `UPDATE requests SET status='rejected' WHERE project_id=? AND id != ? AND status='pending'`, projectID, acceptedID)
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// ---- tasks ----

const taskCols = `id,project_id,title,description,deadline,status,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var desc, deadline sql.NullString
	err := scan(&t.ID, &t.ProjectID, &t.Title, &desc, &deadline, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = desc.String
	}
	if deadline.Valid {
		t.Deadline = &deadline.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, t.Description, nullableStringPtr(t.Deadline), t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id).Scan)
}

// TaskPatch carries optional fields for a partial task update. Deadline is a
// double pointer so the patch can distinguish "leave alone" from "clear".
type TaskPatch struct {
	Title       *string
	Description *string
	Deadline    **string
	Status      *string
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, id string, patch TaskPatch, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if patch.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, *patch.Description)
	}
	if patch.Deadline != nil {
		fields = append(fields, "deadline=?")
		args = append(args, nullableStringPtr(*patch.Deadline))
	}
	if patch.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *patch.Status)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateTaskStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListProjectTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE project_id=? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ---- submissions ----

const submissionCols = `id,task_id,file_path,original_filename,notes,status,review_notes,submitted_at,reviewed_at`

func scanSubmission(scan func(dest ...any) error) (domain.Submission, error) {
	var s domain.Submission
	var notes, reviewNotes, reviewedAt sql.NullString
	err := scan(&s.ID, &s.TaskID, &s.FilePath, &s.OriginalFilename, &notes, &s.Status, &reviewNotes, &s.SubmittedAt, &reviewedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if notes.Valid {
		s.Notes = notes.String
	}
	if reviewNotes.Valid {
		s.ReviewNotes = reviewNotes.String
	}
	if reviewedAt.Valid {
		s.ReviewedAt = &reviewedAt.String
	}
	return s, nil
}

func (r Repo) InsertSubmissionTx(ctx context.Context, tx *sql.Tx, s domain.Submission) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO submissions(`+submissionCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.TaskID, s.FilePath, s.OriginalFilename, s.Notes, s.Status, s.ReviewNotes, s.SubmittedAt, nullableStringPtr(s.ReviewedAt))
	return err
}

func (r Repo) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	return scanSubmission(r.DB.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE id=?`, id).Scan)
}

func (r Repo) ReviewSubmissionTx(ctx context.Context, tx *sql.Tx, id, status, reviewNotes, reviewedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE submissions SET status=?, review_notes=?, reviewed_at=? WHERE id=?`,
		status, reviewNotes, reviewedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTaskSubmissions(ctx context.Context, taskID string) ([]domain.Submission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE task_id=? ORDER BY submitted_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ---- events ----

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{}
	args := []any{}
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, projectID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"id > ?"}
	args := []any{cursor}
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE %s ORDER BY id ASC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var projectID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &projectID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if projectID.Valid {
			e.ProjectID = projectID.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID, 0 when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}
