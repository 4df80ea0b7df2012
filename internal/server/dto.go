package server

import "solvermarket/internal/domain"

// Request payloads

type CreateProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"open,assigned,completed,cancelled"`
}

type SubmitRequestRequest struct {
	ProjectID string `json:"project_id"`
	Message   string `json:"message,omitempty"`
}

type CreateTaskRequest struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline,omitempty" format:"date-time"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date-time"`
	Status      *string `json:"status,omitempty" enum:"pending,in_progress,submitted,completed,rejected"`
}

type ReviewSubmissionRequest struct {
	ReviewNotes string `json:"review_notes,omitempty"`
}

type SetUserRoleRequest struct {
	Role string `json:"role" enum:"admin,buyer,solver"`
}

// Response envelopes. A single entity is wrapped under its name, a
// collection under the plural with a count.

type ProjectEnvelope struct {
	Project domain.ProjectView `json:"project"`
}

type ProjectsEnvelope struct {
	Projects []domain.ProjectView `json:"projects"`
	Count    int                  `json:"count"`
}

type RequestEnvelope struct {
	Request domain.Request `json:"request"`
}

type RequestsEnvelope struct {
	Requests []domain.RequestView `json:"requests"`
	Count    int                  `json:"count"`
}

type TaskEnvelope struct {
	Task domain.Task `json:"task"`
}

type TasksEnvelope struct {
	Tasks []domain.Task `json:"tasks"`
	Count int           `json:"count"`
}

type SubmissionEnvelope struct {
	Submission domain.Submission `json:"submission"`
}

type SubmissionsEnvelope struct {
	Submissions []domain.Submission `json:"submissions"`
	Count       int                 `json:"count"`
}

type UserEnvelope struct {
	User domain.User `json:"user"`
}

type UsersEnvelope struct {
	Users []domain.User `json:"users"`
	Count int           `json:"count"`
}

type EventsEnvelope struct {
	Events []domain.Event `json:"events"`
	Count  int            `json:"count"`
}

func projectEnvelope(p domain.Project) ProjectEnvelope {
	return ProjectEnvelope{Project: domain.ProjectView{Project: p}}
}

func projectsEnvelope(items []domain.ProjectView) ProjectsEnvelope {
	if items == nil {
		items = []domain.ProjectView{}
	}
	return ProjectsEnvelope{Projects: items, Count: len(items)}
}

func requestsEnvelope(items []domain.RequestView) RequestsEnvelope {
	if items == nil {
		items = []domain.RequestView{}
	}
	return RequestsEnvelope{Requests: items, Count: len(items)}
}

func tasksEnvelope(items []domain.Task) TasksEnvelope {
	if items == nil {
		items = []domain.Task{}
	}
	return TasksEnvelope{Tasks: items, Count: len(items)}
}

func submissionsEnvelope(items []domain.Submission) SubmissionsEnvelope {
	if items == nil {
		items = []domain.Submission{}
	}
	return SubmissionsEnvelope{Submissions: items, Count: len(items)}
}

func usersEnvelope(items []domain.User) UsersEnvelope {
	if items == nil {
		items = []domain.User{}
	}
	return UsersEnvelope{Users: items, Count: len(items)}
}

func eventsEnvelope(items []domain.Event) EventsEnvelope {
	if items == nil {
		items = []domain.Event{}
	}
	return EventsEnvelope{Events: items, Count: len(items)}
}
