package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"solvermarket/internal/engine"
	"solvermarket/internal/engine/access"
	"solvermarket/internal/repo"
	"solvermarket/internal/storage"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Store    *storage.Store
	BasePath string
	Auth     AuthConfig
}

// apiError models the error envelope: {"error": "..."}.
type apiError struct {
	status int
	Detail string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Detail }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Detail: message}
}

// New returns an HTTP handler exposing the Solvermarket API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: upload store is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the flat error envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema/request validation errors surface as 400.
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Solvermarket API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerRequests(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerSubmissions(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerUpload(router, basePath, cfg)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var forbidden access.ForbiddenError
	if errors.As(err, &forbidden) {
		return newAPIError(http.StatusForbidden, err.Error())
	}
	var invalid access.InvalidStateError
	if errors.As(err, &invalid) {
		return newAPIError(http.StatusBadRequest, err.Error())
	}
	var conflict access.ConflictError
	if errors.As(err, &conflict) {
		return newAPIError(http.StatusConflict, err.Error())
	}
	var validation access.ValidationError
	if errors.As(err, &validation) {
		return newAPIError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not found")
	}
	var tooLarge storage.ErrTooLarge
	if errors.As(err, &tooLarge) {
		return newAPIError(http.StatusBadRequest, err.Error())
	}
	var badExt storage.ErrBadExtension
	if errors.As(err, &badExt) {
		return newAPIError(http.StatusBadRequest, err.Error())
	}
	log.Printf("internal error: %v", err)
	return newAPIError(http.StatusInternalServerError, "internal error")
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, principal, input.Body.Title, input.Body.Description)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectEnvelope `json:"body"`
		}{Body: projectEnvelope(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List visible projects",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProjectsEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjects(ctx, principal)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectsEnvelope `json:"body"`
		}{Body: projectsEnvelope(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProjectEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := e.GetProject(ctx, principal, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectEnvelope `json:"body"`
		}{Body: ProjectEnvelope{Project: view}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, principal, input.ID, engine.ProjectPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Status:      input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectEnvelope `json:"body"`
		}{Body: projectEnvelope(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Delete project",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, principal, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Submit a request to work on a project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body SubmitRequestRequest `json:"body"`
	}) (*struct {
		Body RequestEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rq, err := e.SubmitRequest(ctx, principal, input.Body.ProjectID, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestEnvelope `json:"body"`
		}{Body: RequestEnvelope{Request: rq}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-requests",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/requests",
		Summary:     "List a project's requests",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestsEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjectRequests(ctx, principal, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestsEnvelope `json:"body"`
		}{Body: requestsEnvelope(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-requests",
		Method:      http.MethodGet,
		Path:        "/requests/mine",
		Summary:     "List the caller's requests",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RequestsEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListMyRequests(ctx, principal)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestsEnvelope `json:"body"`
		}{Body: requestsEnvelope(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-request",
		Method:      http.MethodPatch,
		Path:        "/requests/{id}/accept",
		Summary:     "Accept a request and assign the project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rq, err := e.AcceptRequest(ctx, principal, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestEnvelope `json:"body"`
		}{Body: RequestEnvelope{Request: rq}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-request",
		Method:      http.MethodPatch,
		Path:        "/requests/{id}/reject",
		Summary:     "Reject a request",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rq, err := e.RejectRequest(ctx, principal, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestEnvelope `json:"body"`
		}{Body: RequestEnvelope{Request: rq}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, principal, engine.TaskCreateOptions{
			ProjectID:   input.Body.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Deadline:    input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/tasks",
		Summary:     "List a project's tasks",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TasksEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTasks(ctx, principal, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TasksEnvelope `json:"body"`
		}{Body: tasksEnvelope(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		patch := engine.TaskPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Status:      input.Body.Status,
		}
		if input.Body.Deadline != nil {
			d := input.Body.Deadline
			patch.Deadline = &d
		}
		t, err := e.UpdateTask(ctx, principal, input.ID, patch)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskEnvelope `json:"body"`
		}{Body: TaskEnvelope{Task: t}}, nil
	})
}

func registerSubmissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-task-submissions",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/submissions",
		Summary:     "List a task's submissions",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body SubmissionsEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSubmissions(ctx, principal, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmissionsEnvelope `json:"body"`
		}{Body: submissionsEnvelope(items)}, nil
	})

	review := func(decision string) func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body ReviewSubmissionRequest `json:"body"`
	}) (*struct {
		Body SubmissionEnvelope `json:"body"`
	}, error) {
		return func(ctx context.Context, input *struct {
			ID   string                  `path:"id"`
			Body ReviewSubmissionRequest `json:"body"`
		}) (*struct {
			Body SubmissionEnvelope `json:"body"`
		}, error) {
			principal, authErr := requirePrincipal(ctx)
			if authErr != nil {
				return nil, authErr
			}
			s, err := e.ReviewSubmission(ctx, principal, input.ID, decision, input.Body.ReviewNotes)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body SubmissionEnvelope `json:"body"`
			}{Body: SubmissionEnvelope{Submission: s}}, nil
		}
	}

	huma.Register(api, huma.Operation{
		OperationID: "accept-submission",
		Method:      http.MethodPatch,
		Path:        "/submissions/{id}/accept",
		Summary:     "Accept a submission",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, review("accepted"))

	huma.Register(api, huma.Operation{
		OperationID: "reject-submission",
		Method:      http.MethodPatch,
		Path:        "/submissions/{id}/reject",
		Summary:     "Reject a submission",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, review("rejected"))
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UsersEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListUsers(ctx, principal)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UsersEnvelope `json:"body"`
		}{Body: usersEnvelope(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-role",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/role",
		Summary:     "Change a user's role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body SetUserRoleRequest `json:"body"`
	}) (*struct {
		Body UserEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.SetUserRole(ctx, principal, input.ID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserEnvelope `json:"body"`
		}{Body: UserEnvelope{User: u}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.GetUser(ctx, principal, principal.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserEnvelope `json:"body"`
		}{Body: UserEnvelope{User: u}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-project-events",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/events",
		Summary:     "Tail a project's event log",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventsEnvelope `json:"body"`
	}, error) {
		principal, authErr := requirePrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ProjectEvents(ctx, principal, input.ID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventsEnvelope `json:"body"`
		}{Body: eventsEnvelope(items)}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Solvermarket API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}
