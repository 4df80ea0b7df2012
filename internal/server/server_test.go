package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"testing"
	"time"

	"solvermarket/internal/config"
	"solvermarket/internal/db"
	"solvermarket/internal/domain"
	"solvermarket/internal/engine"
	"solvermarket/internal/migrate"
	"solvermarket/internal/storage"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()

	AdminToken  string
	BuyerToken  string
	SolverToken string
	Buyer       domain.User
	Solver      domain.User
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	ctx := context.Background()

	admin, err := e.CreateUser(ctx, "admin@example.com", "Admin", "admin")
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	buyer, err := e.CreateUser(ctx, "buyer@example.com", "Buyer", "buyer")
	if err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	solver, err := e.CreateUser(ctx, "solver@example.com", "Solver", "solver")
	if err != nil {
		t.Fatalf("seed solver: %v", err)
	}

	store := storage.New(t.TempDir(), 1, []string{".zip"})
	handler, err := New(Config{
		Engine:   e,
		Store:    store,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)

	testSrv := &testServer{
		URL:         "http://" + ln.Addr().String(),
		Engine:      e,
		client:      &http.Client{},
		AdminToken:  mustToken(t, admin),
		BuyerToken:  mustToken(t, buyer),
		SolverToken: mustToken(t, solver),
		Buyer:       buyer,
		Solver:      solver,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func mustToken(t *testing.T, u domain.User) string {
	t.Helper()
	token, err := SignToken(testSecret, time.Hour, u)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorMessage(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope %s: %v", string(data), err)
	}
	return envelope.Error
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	if errorMessage(t, data) == "" {
		t.Fatalf("expected error envelope, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects", "not-a-token", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d %s", res.StatusCode, string(data))
	}

	// health stays open
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d %s", res.StatusCode, string(data))
	}
}

func TestProjectRequestFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", srv.BuyerToken, map[string]any{
		"title":       "Crawler",
		"description": "Crawl the docs site",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var created ProjectEnvelope
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	projectID := created.Project.ID
	if projectID == "" || created.Project.Status != "open" {
		t.Fatalf("unexpected project: %+v", created.Project)
	}

	// solver may not create projects
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", srv.SolverToken, map[string]any{
		"title":       "Nope",
		"description": "nope",
	})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests", srv.SolverToken, map[string]any{
		"project_id": projectID,
		"message":    "I can do this",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit request: %d %s", res.StatusCode, string(data))
	}
	var submitted RequestEnvelope
	if err := json.Unmarshal(data, &submitted); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}

	// duplicate request from the same solver
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests", srv.SolverToken, map[string]any{
		"project_id": projectID,
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/"+projectID+"/requests", srv.BuyerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list requests: %d %s", res.StatusCode, string(data))
	}
	var listing RequestsEnvelope
	if err := json.Unmarshal(data, &listing); err != nil {
		t.Fatalf("unmarshal listing: %v", err)
	}
	if listing.Count != 1 || len(listing.Requests) != 1 {
		t.Fatalf("expected one request, got %s", string(data))
	}
	if listing.Requests[0].SolverName != "Solver" {
		t.Fatalf("expected joined solver name, got %+v", listing.Requests[0])
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/requests/"+submitted.Request.ID+"/accept", srv.BuyerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept request: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/"+projectID, srv.BuyerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project: %d %s", res.StatusCode, string(data))
	}
	var fetched ProjectEnvelope
	if err := json.Unmarshal(data, &fetched); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if fetched.Project.Status != "assigned" {
		t.Fatalf("expected assigned, got %s", fetched.Project.Status)
	}
	if fetched.Project.AssignedSolverID == nil || *fetched.Project.AssignedSolverID != srv.Solver.ID {
		t.Fatalf("expected solver assigned: %+v", fetched.Project)
	}
}

func TestValidationErrorsSurfaceAs400(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", srv.BuyerToken, map[string]any{
		"title":       "   ",
		"description": "d",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
	if errorMessage(t, data) == "" {
		t.Fatalf("expected error envelope, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/does-not-exist", srv.BuyerToken, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
}

// assignTestProject runs create, request and accept over the API and returns
// the project and task ids.
func assignTestProject(t *testing.T, srv *testServer) (string, string) {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", srv.BuyerToken, map[string]any{
		"title":       "Uploader",
		"description": "Upload things",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var proj ProjectEnvelope
	_ = json.Unmarshal(data, &proj)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests", srv.SolverToken, map[string]any{
		"project_id": proj.Project.ID,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit request: %d %s", res.StatusCode, string(data))
	}
	var rq RequestEnvelope
	_ = json.Unmarshal(data, &rq)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/requests/"+rq.Request.ID+"/accept", srv.BuyerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept request: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", srv.SolverToken, map[string]any{
		"project_id": proj.Project.ID,
		"title":      "Deliver it",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task TaskEnvelope
	_ = json.Unmarshal(data, &task)
	return proj.Project.ID, task.Task.ID
}

func uploadFile(t *testing.T, srv *testServer, token, taskID, filename string, content []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("task_id", taskID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/submissions", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do upload: %v", err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res, data
}

func TestUploadSubmission(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, taskID := assignTestProject(t, srv)

	res, data := uploadFile(t, srv, srv.SolverToken, taskID, "work.zip", []byte("zip bytes"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d %s", res.StatusCode, string(data))
	}
	var sub SubmissionEnvelope
	if err := json.Unmarshal(data, &sub); err != nil {
		t.Fatalf("unmarshal submission: %v", err)
	}
	if sub.Submission.Status != "pending_review" {
		t.Fatalf("expected pending_review, got %s", sub.Submission.Status)
	}
	if sub.Submission.OriginalFilename != "work.zip" {
		t.Fatalf("expected original filename, got %s", sub.Submission.OriginalFilename)
	}

	// the task moved to submitted
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/tasks/"+taskID+"/submissions", srv.BuyerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list submissions: %d %s", res.StatusCode, string(data))
	}
	var subs SubmissionsEnvelope
	_ = json.Unmarshal(data, &subs)
	if subs.Count != 1 {
		t.Fatalf("expected one submission, got %s", string(data))
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, taskID := assignTestProject(t, srv)

	res, data := uploadFile(t, srv, srv.SolverToken, taskID, "work.exe", []byte("nope"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad extension, got %d %s", res.StatusCode, string(data))
	}

	// store limit is 1 MB in the test fixture
	big := make([]byte, (1<<20)+512)
	res, data = uploadFile(t, srv, srv.SolverToken, taskID, "big.zip", big)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversize, got %d %s", res.StatusCode, string(data))
	}

	res, data = uploadFile(t, srv, "", taskID, "work.zip", []byte("zip"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d %s", res.StatusCode, string(data))
	}
}

func TestReviewOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, taskID := assignTestProject(t, srv)
	client := srv.Client()

	res, data := uploadFile(t, srv, srv.SolverToken, taskID, "work.zip", []byte("zip bytes"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d %s", res.StatusCode, string(data))
	}
	var sub SubmissionEnvelope
	_ = json.Unmarshal(data, &sub)

	// rejecting needs notes
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/submissions/"+sub.Submission.ID+"/reject", srv.BuyerToken, map[string]any{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty reject notes, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/submissions/"+sub.Submission.ID+"/accept", srv.BuyerToken, map[string]any{
		"review_notes": "ship it",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept submission: %d %s", res.StatusCode, string(data))
	}
	var reviewed SubmissionEnvelope
	_ = json.Unmarshal(data, &reviewed)
	if reviewed.Submission.Status != "accepted" || reviewed.Submission.ReviewedAt == nil {
		t.Fatalf("unexpected review result: %s", string(data))
	}
}

func TestRoleChangeAppliesToOldTokens(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v1/users/"+srv.Solver.ID+"/role", srv.AdminToken, map[string]any{
		"role": "buyer",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set role: %d %s", res.StatusCode, string(data))
	}

	// the solver's existing token now carries buyer permissions
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects", srv.SolverToken, map[string]any{
		"title":       "Now a buyer",
		"description": "role re-read from the database",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 after role change, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", srv.SolverToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var me UserEnvelope
	_ = json.Unmarshal(data, &me)
	if me.User.Role != "buyer" {
		t.Fatalf("expected buyer, got %s", me.User.Role)
	}
}
