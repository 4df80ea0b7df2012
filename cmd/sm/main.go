package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"solvermarket/internal/app"
	"solvermarket/internal/config"
	"solvermarket/internal/db"
	"solvermarket/internal/domain"
	"solvermarket/internal/engine"
	"solvermarket/internal/engine/access"
	"solvermarket/internal/repo"
	"solvermarket/internal/server"
	"solvermarket/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "sm",
	Short: "Solvermarket CLI",
	Long: `Solvermarket matches buyers who post projects with solvers who bid on them.
Core concepts:
- Workspace: your .solvermarket directory holding the database and uploads.
- Project: a buyer's posting; open -> assigned -> completed (or cancelled).
- Request: a solver's bid on an open project; accepting one rejects the rest
  and assigns the project in a single step.
- Task: a work item the assigned solver tracks under the project.
- Submission: an uploaded deliverable the buyer accepts or rejects.
- Event log: diary of changes, view with 'sm log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SOLVERMARKET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "acting user id")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(submissionCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// ---- config ----

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default solvermarket.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	return cmd
}

// ---- users ----

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userAddCmd())
	cmd.AddCommand(userListCmd())
	cmd.AddCommand(userRoleCmd())
	cmd.AddCommand(userTokenCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var email, name, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || name == "" {
				return fmt.Errorf("--email and --name required")
			}
			if !access.ValidRole(role) {
				return fmt.Errorf("invalid role %q (admin, buyer or solver)", role)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := app.SeedUser(ctx, e, email, name, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "solver", "role (admin, buyer or solver)")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				users, err := e.ListUsers(ctx, p)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Name, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userRoleCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "role <user-id>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == "" {
				return fmt.Errorf("--role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				u, err := e.SetUserRole(ctx, p, args[0], role)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "new role (admin, buyer or solver)")
	return cmd
}

func userTokenCmd() *cobra.Command {
	var ttlMins int
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for API access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("user id required")
			}
			workspace := viper.GetString("workspace")
			cfg, err := app.LoadConfig(workspace)
			if err != nil {
				return err
			}
			secret := jwtSecret(cfg)
			if secret == "" {
				return fmt.Errorf("no JWT secret: set auth.jwt_secret in %s or SOLVERMARKET_JWT_SECRET", config.Path(workspace))
			}
			ttl := time.Duration(cfg.Auth.TokenTTLMins) * time.Minute
			if ttlMins > 0 {
				ttl = time.Duration(ttlMins) * time.Minute
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				token, err := server.SignToken(secret, ttl, u)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&ttlMins, "ttl", 0, "token lifetime in minutes (default from config)")
	return cmd
}

// ---- projects ----

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	cmd.AddCommand(projectCreateCmd())
	cmd.AddCommand(projectListCmd())
	cmd.AddCommand(projectShowCmd())
	cmd.AddCommand(projectUpdateCmd())
	cmd.AddCommand(projectDeleteCmd())
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a new project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				proj, err := e.CreateProject(ctx, p, title, desc)
				if err != nil {
					return err
				}
				return printJSONOrTable(proj)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.ListProjects(ctx, p)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Buyer", "Solver"})
				for _, it := range items {
					solver := ""
					if it.AssignedSolverName != nil {
						solver = *it.AssignedSolverName
					}
					tw.AppendRow(table.Row{it.ID, it.Title, it.Status, it.BuyerName, solver})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				proj, err := e.GetProject(ctx, p, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(proj)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var title, desc, status string
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.ProjectPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &desc
			}
			if cmd.Flags().Changed("status") {
				patch.Status = &status
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				proj, err := e.UpdateProject(ctx, p, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(proj)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status (completed or cancelled)")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				if err := e.DeleteProject(ctx, p, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

// ---- requests ----

func requestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "request", Short: "Manage solver requests"}
	cmd.AddCommand(requestSubmitCmd())
	cmd.AddCommand(requestListCmd())
	cmd.AddCommand(requestMineCmd())
	cmd.AddCommand(requestAcceptCmd())
	cmd.AddCommand(requestRejectCmd())
	return cmd
}

func requestSubmitCmd() *cobra.Command {
	var projectID, message string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Bid on an open project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				req, err := e.SubmitRequest(ctx, p, projectID, message)
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&message, "message", "", "pitch to the buyer")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func requestListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests on a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.ListProjectRequests(ctx, p, projectID)
				if err != nil {
					return err
				}
				return printRequestViews(items)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func requestMineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List my requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.ListMyRequests(ctx, p)
				if err != nil {
					return err
				}
				return printRequestViews(items)
			})
		},
	}
	return cmd
}

func requestAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <request-id>",
		Short: "Accept a request and assign the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				req, err := e.AcceptRequest(ctx, p, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	return cmd
}

func requestRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				req, err := e.RejectRequest(ctx, p, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	return cmd
}

func printRequestViews(items []domain.RequestView) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Project", "Solver", "Status", "Message"})
	for _, it := range items {
		title := it.ProjectTitle
		if title == "" {
			title = it.ProjectID
		}
		tw.AppendRow(table.Row{it.ID, title, it.SolverName, it.Status, it.Message})
	}
	tw.Render()
	return nil
}

// ---- tasks ----

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskUpdateCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var projectID, title, desc, deadline string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task on an assigned project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || title == "" {
				return fmt.Errorf("--project and --title required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				t, err := e.CreateTask(ctx, p, engine.TaskCreateOptions{
					ProjectID:   projectID,
					Title:       title,
					Description: desc,
					Deadline:    deadline,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "RFC3339 deadline")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks on a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				tasks, err := e.ListTasks(ctx, p, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Deadline"})
				for _, t := range tasks {
					dl := ""
					if t.Deadline != nil {
						dl = *t.Deadline
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, dl})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, desc, deadline, status string
	var clearDeadline bool
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &desc
			}
			if cmd.Flags().Changed("status") {
				patch.Status = &status
			}
			if clearDeadline {
				var none *string
				patch.Deadline = &none
			} else if cmd.Flags().Changed("deadline") {
				dl := &deadline
				patch.Deadline = &dl
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				t, err := e.UpdateTask(ctx, p, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "new RFC3339 deadline")
	cmd.Flags().BoolVar(&clearDeadline, "clear-deadline", false, "remove the deadline")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	return cmd
}

// ---- submissions ----

func submissionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "submission", Short: "Manage submissions"}
	cmd.AddCommand(submissionUploadCmd())
	cmd.AddCommand(submissionListCmd())
	cmd.AddCommand(submissionAcceptCmd())
	cmd.AddCommand(submissionRejectCmd())
	return cmd
}

func submissionUploadCmd() *cobra.Command {
	var taskID, file, notes string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a deliverable for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" || file == "" {
				return fmt.Errorf("--task and --file required")
			}
			workspace := viper.GetString("workspace")
			cfg, err := app.LoadConfig(workspace)
			if err != nil {
				return err
			}
			store := storage.New(filepath.Join(workspace, cfg.Uploads.Dir), cfg.Uploads.MaxSizeMB, cfg.Uploads.AllowedExtensions)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				storedPath, err := store.Save(filepath.Base(file), f)
				if err != nil {
					return err
				}
				s, err := e.UploadSubmission(ctx, p, taskID, storedPath, filepath.Base(file), notes)
				if err != nil {
					_ = store.Remove(storedPath)
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&file, "file", "", "path to the archive")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the reviewer")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func submissionListCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions on a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" {
				return fmt.Errorf("--task required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := actingPrincipal(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.ListSubmissions(ctx, p, taskID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "File", "Status", "Submitted", "Reviewed"})
				for _, s := range items {
					reviewed := ""
					if s.ReviewedAt != nil {
						reviewed = *s.ReviewedAt
					}
					tw.AppendRow(table.Row{s.ID, s.OriginalFilename, s.Status, s.SubmittedAt, reviewed})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func submissionAcceptCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "accept <submission-id>",
		Short: "Accept a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reviewSubmission(cmd.Context(), args[0], "accepted", notes)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	return cmd
}

func submissionRejectCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "reject <submission-id>",
		Short: "Reject a submission (notes required)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reviewSubmission(cmd.Context(), args[0], "rejected", notes)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	return cmd
}

func reviewSubmission(ctx context.Context, id, decision, notes string) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		p, err := actingPrincipal(ctx, e)
		if err != nil {
			return err
		}
		s, err := e.ReviewSubmission(ctx, p, id, decision, notes)
		if err != nil {
			return err
		}
		return printJSONOrTable(s)
	})
}

// ---- event log ----

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: projects, requests, tasks and reviews.",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var projectID, evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, projectID, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					entity := evt.EntityKind
					if evt.EntityID != "" {
						entity = entity + ":" + evt.EntityID
					}
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, entity, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of events")
	cmd.Flags().StringVar(&projectID, "project", "", "filter by project id")
	cmd.Flags().StringVar(&evtType, "type", "", "filter by event type")
	return cmd
}

// ---- serve ----

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			cfg, err := app.LoadConfig(workspace)
			if err != nil {
				return err
			}
			secret := jwtSecret(cfg)
			if secret == "" {
				return fmt.Errorf("no JWT secret: set auth.jwt_secret in %s or SOLVERMARKET_JWT_SECRET", config.Path(workspace))
			}
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			e := engine.New(conn, cfg)
			store := storage.New(filepath.Join(workspace, cfg.Uploads.Dir), cfg.Uploads.MaxSizeMB, cfg.Uploads.AllowedExtensions)
			handler, err := server.New(server.Config{
				Engine:   e,
				Store:    store,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret: secret,
					TokenTTL:  time.Duration(cfg.Auth.TokenTTLMins) * time.Minute,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Solvermarket API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8470", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// ---- helpers ----

func jwtSecret(cfg *config.Config) string {
	if s := os.Getenv("SOLVERMARKET_JWT_SECRET"); s != "" {
		return s
	}
	return cfg.Auth.JWTSecret
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := app.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	cfg, err := app.LoadConfig(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := app.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

// actingPrincipal resolves --as into the stored user so the role on record
// governs the operation.
func actingPrincipal(ctx context.Context, e engine.Engine) (access.Principal, error) {
	id := viper.GetString("as")
	if id == "" {
		return access.Principal{}, fmt.Errorf("--as <user-id> required (register one with sm user add)")
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return access.Principal{}, fmt.Errorf("unknown user %q", id)
		}
		return access.Principal{}, err
	}
	return access.Principal{ID: u.ID, Role: u.Role, Name: u.Name}, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
