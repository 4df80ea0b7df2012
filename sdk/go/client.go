package solvermarketsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Client is a minimal Solvermarket HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID                 string  `json:"id"`
	BuyerID            string  `json:"buyer_id"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Status             string  `json:"status"`
	AssignedSolverID   *string `json:"assigned_solver_id,omitempty"`
	BuyerName          string  `json:"buyer_name,omitempty"`
	AssignedSolverName *string `json:"assigned_solver_name,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

// Request represents a solver's bid on a project.
type Request struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	SolverID     string `json:"solver_id"`
	Message      string `json:"message,omitempty"`
	Status       string `json:"status"`
	SolverName   string `json:"solver_name,omitempty"`
	ProjectTitle string `json:"project_title,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// Task represents a work item under an assigned project.
type Task struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Submission represents an uploaded deliverable.
type Submission struct {
	ID               string  `json:"id"`
	TaskID           string  `json:"task_id"`
	FilePath         string  `json:"file_path"`
	OriginalFilename string  `json:"original_filename"`
	Notes            string  `json:"notes,omitempty"`
	Status           string  `json:"status"`
	ReviewNotes      string  `json:"review_notes,omitempty"`
	SubmittedAt      string  `json:"submitted_at"`
	ReviewedAt       *string `json:"reviewed_at,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

// CreateProject posts a new project.
func (c *Client) CreateProject(ctx context.Context, title, description string) (Project, error) {
	body := map[string]any{"title": title, "description": description}
	var resp struct {
		Project Project `json:"project"`
	}
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp.Project, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp struct {
		Project Project `json:"project"`
	}
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp.Project, err
}

// ListProjects returns the projects visible to the caller.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp struct {
		Projects []Project `json:"projects"`
	}
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp.Projects, err
}

// UpdateProject patches a project. Nil fields are left unchanged.
func (c *Client) UpdateProject(ctx context.Context, id string, title, description, status *string) (Project, error) {
	body := map[string]any{}
	if title != nil {
		body["title"] = *title
	}
	if description != nil {
		body["description"] = *description
	}
	if status != nil {
		body["status"] = *status
	}
	var resp struct {
		Project Project `json:"project"`
	}
	err := c.do(ctx, http.MethodPatch, "projects/"+url.PathEscape(id), body, &resp)
	return resp.Project, err
}

// DeleteProject removes a project and its requests.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "projects/"+url.PathEscape(id), nil, nil)
}

// SubmitRequest bids on an open project.
func (c *Client) SubmitRequest(ctx context.Context, projectID, message string) (Request, error) {
	body := map[string]any{"project_id": projectID, "message": message}
	var resp struct {
		Request Request `json:"request"`
	}
	err := c.do(ctx, http.MethodPost, "requests", body, &resp)
	return resp.Request, err
}

// ProjectRequests lists the requests on a project.
func (c *Client) ProjectRequests(ctx context.Context, projectID string) ([]Request, error) {
	var resp struct {
		Requests []Request `json:"requests"`
	}
	endpoint := fmt.Sprintf("projects/%s/requests", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Requests, err
}

// MyRequests lists the caller's own requests.
func (c *Client) MyRequests(ctx context.Context) ([]Request, error) {
	var resp struct {
		Requests []Request `json:"requests"`
	}
	err := c.do(ctx, http.MethodGet, "requests/mine", nil, &resp)
	return resp.Requests, err
}

// AcceptRequest accepts a request, assigning the project and rejecting the
// other pending requests.
func (c *Client) AcceptRequest(ctx context.Context, id string) (Request, error) {
	var resp struct {
		Request Request `json:"request"`
	}
	endpoint := fmt.Sprintf("requests/%s/accept", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, nil, &resp)
	return resp.Request, err
}

// RejectRequest rejects a pending request.
func (c *Client) RejectRequest(ctx context.Context, id string) (Request, error) {
	var resp struct {
		Request Request `json:"request"`
	}
	endpoint := fmt.Sprintf("requests/%s/reject", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, nil, &resp)
	return resp.Request, err
}

// CreateTask creates a task on an assigned project.
func (c *Client) CreateTask(ctx context.Context, projectID, title, description, deadline string) (Task, error) {
	body := map[string]any{"project_id": projectID, "title": title}
	if description != "" {
		body["description"] = description
	}
	if deadline != "" {
		body["deadline"] = deadline
	}
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp.Task, err
}

// ProjectTasks lists the tasks under a project.
func (c *Client) ProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	endpoint := fmt.Sprintf("projects/%s/tasks", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Tasks, err
}

// UpdateTask patches a task. Nil fields are left unchanged.
func (c *Client) UpdateTask(ctx context.Context, id string, title, description, deadline, status *string) (Task, error) {
	body := map[string]any{}
	if title != nil {
		body["title"] = *title
	}
	if description != nil {
		body["description"] = *description
	}
	if deadline != nil {
		body["deadline"] = *deadline
	}
	if status != nil {
		body["status"] = *status
	}
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), body, &resp)
	return resp.Task, err
}

// UploadSubmission uploads a deliverable as multipart form data.
func (c *Client) UploadSubmission(ctx context.Context, taskID, filename string, file io.Reader, notes string) (Submission, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("task_id", taskID); err != nil {
		return Submission{}, err
	}
	if notes != "" {
		if err := mw.WriteField("notes", notes); err != nil {
			return Submission{}, err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return Submission{}, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return Submission{}, err
	}
	if err := mw.Close(); err != nil {
		return Submission{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/v1/submissions", &buf)
	if err != nil {
		return Submission{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	var resp struct {
		Submission Submission `json:"submission"`
	}
	if err := c.send(req, &resp); err != nil {
		return Submission{}, err
	}
	return resp.Submission, nil
}

// TaskSubmissions lists the submissions on a task.
func (c *Client) TaskSubmissions(ctx context.Context, taskID string) ([]Submission, error) {
	var resp struct {
		Submissions []Submission `json:"submissions"`
	}
	endpoint := fmt.Sprintf("tasks/%s/submissions", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Submissions, err
}

// AcceptSubmission accepts a pending submission.
func (c *Client) AcceptSubmission(ctx context.Context, id, reviewNotes string) (Submission, error) {
	return c.reviewSubmission(ctx, id, "accept", reviewNotes)
}

// RejectSubmission rejects a pending submission. Review notes are required.
func (c *Client) RejectSubmission(ctx context.Context, id, reviewNotes string) (Submission, error) {
	return c.reviewSubmission(ctx, id, "reject", reviewNotes)
}

func (c *Client) reviewSubmission(ctx context.Context, id, action, reviewNotes string) (Submission, error) {
	body := map[string]any{}
	if reviewNotes != "" {
		body["review_notes"] = reviewNotes
	}
	var resp struct {
		Submission Submission `json:"submission"`
	}
	endpoint := fmt.Sprintf("submissions/%s/%s", url.PathEscape(id), action)
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp.Submission, err
}

// ProjectEvents returns recent events for a project.
func (c *Client) ProjectEvents(ctx context.Context, projectID string, limit int) ([]Event, error) {
	endpoint := fmt.Sprintf("projects/%s/events", url.PathEscape(projectID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &envelope) == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
