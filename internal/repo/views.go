package repo

import (
	"context"
	"database/sql"

	"solvermarket/internal/domain"
)

// Read-side joins behind the listing endpoints. Writes never go through
// these; they exist so clients get display names without extra round trips.

const projectViewCols = `p.id,p.buyer_id,p.title,p.description,p.status,p.assigned_solver_id,p.created_at,p.updated_at,b.name,s.name`

func scanProjectView(scan func(dest ...any) error) (domain.ProjectView, error) {
	var v domain.ProjectView
	var solverID, solverName sql.NullString
	err := scan(&v.ID, &v.BuyerID, &v.Title, &v.Description, &v.Status, &solverID, &v.CreatedAt, &v.UpdatedAt, &v.BuyerName, &solverName)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	if solverID.Valid {
		v.AssignedSolverID = &solverID.String
	}
	if solverName.Valid {
		v.AssignedSolverName = &solverName.String
	}
	return v, nil
}

// ProjectFilters narrows ListProjectViews to what the caller may see.
type ProjectFilters struct {
	BuyerID  string // only projects owned by this buyer
	SolverID string // only projects open or assigned to this solver
}

func (r Repo) ListProjectViews(ctx context.Context, f ProjectFilters) ([]domain.ProjectView, error) {
	query := `SELECT ` + projectViewCols + ` FROM projects p
JOIN users b ON b.id=p.buyer_id
LEFT JOIN users s ON s.id=p.assigned_solver_id`
	var args []any
	switch {
	case f.BuyerID != "":
		query += ` WHERE p.buyer_id=?`
		args = append(args, f.BuyerID)
	case f.SolverID != "":
		query += ` WHERE (p.status='open' OR p.assigned_solver_id=?)`
		args = append(args, f.SolverID)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectView
	for rows.Next() {
		v, err := scanProjectView(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) GetProjectView(ctx context.Context, id string) (domain.ProjectView, error) {
	return scanProjectView(r.DB.QueryRowContext(ctx, `SELECT `+projectViewCols+` FROM projects p
JOIN users b ON b.id=p.buyer_id
LEFT JOIN users s ON s.id=p.assigned_solver_id
WHERE p.id=?`, id).Scan)
}

// ListProjectRequestViews returns a project's requests with solver identity
// attached, newest first.
func (r Repo) ListProjectRequestViews(ctx context.Context, projectID string) ([]domain.RequestView, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT r.id,r.project_id,r.solver_id,r.message,r.status,r.created_at,u.name,u.email
FROM requests r
JOIN users u ON u.id=r.solver_id
WHERE r.project_id=?
ORDER BY r.created_at DESC, r.id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RequestView
	for rows.Next() {
		var v domain.RequestView
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.SolverID, &v.Message, &v.Status, &v.CreatedAt, &v.SolverName, &v.SolverEmail); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// ListSolverRequestViews returns a solver's own requests with the parent
// project and its buyer attached, newest first.
func (r Repo) ListSolverRequestViews(ctx context.Context, solverID string) ([]domain.RequestView, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT r.id,r.project_id,r.solver_id,r.message,r.status,r.created_at,p.title,p.description,p.status,b.name
FROM requests r
JOIN projects p ON p.id=r.project_id
JOIN users b ON b.id=p.buyer_id
WHERE r.solver_id=?
ORDER BY r.created_at DESC, r.id DESC`, solverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RequestView
	for rows.Next() {
		var v domain.RequestView
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.SolverID, &v.Message, &v.Status, &v.CreatedAt, &v.ProjectTitle, &v.ProjectDescription, &v.ProjectStatus, &v.BuyerName); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}
