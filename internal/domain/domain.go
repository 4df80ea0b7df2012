package domain

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role" enum:"admin,buyer,solver"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID               string  `json:"id"`
	BuyerID          string  `json:"buyer_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Status           string  `json:"status" enum:"open,assigned,completed,cancelled"`
	AssignedSolverID *string `json:"assigned_solver_id,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

// ProjectView is a project enriched with display names for listings.
type ProjectView struct {
	Project
	BuyerName          string  `json:"buyer_name,omitempty"`
	AssignedSolverName *string `json:"assigned_solver_name,omitempty"`
}

type Request struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	SolverID  string `json:"solver_id"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status" enum:"pending,accepted,rejected"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// RequestView carries the joined solver and project fields the listing
// endpoints return alongside the request itself.
type RequestView struct {
	Request
	SolverName         string `json:"solver_name,omitempty"`
	SolverEmail        string `json:"solver_email,omitempty"`
	ProjectTitle       string `json:"project_title,omitempty"`
	ProjectDescription string `json:"project_description,omitempty"`
	ProjectStatus      string `json:"project_status,omitempty"`
	BuyerName          string `json:"buyer_name,omitempty"`
}

type Task struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date-time"`
	Status      string  `json:"status" enum:"pending,in_progress,submitted,completed,rejected"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Submission struct {
	ID               string  `json:"id"`
	TaskID           string  `json:"task_id"`
	FilePath         string  `json:"file_path"`
	OriginalFilename string  `json:"original_filename"`
	Notes            string  `json:"notes,omitempty"`
	Status           string  `json:"status" enum:"pending_review,accepted,rejected"`
	ReviewNotes      string  `json:"review_notes,omitempty"`
	SubmittedAt      string  `json:"submitted_at" format:"date-time"`
	ReviewedAt       *string `json:"reviewed_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
