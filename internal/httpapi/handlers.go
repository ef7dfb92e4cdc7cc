package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/agentdevsl/taskdraft/internal/authoring"
	"github.com/agentdevsl/taskdraft/internal/health"
	"github.com/agentdevsl/taskdraft/internal/metrics"
	"github.com/agentdevsl/taskdraft/internal/store"
)

// Directory is the project and task catalog the API serves. Both the SQLite
// store and its in-memory fallback satisfy it.
type Directory interface {
	CreateProject(ctx context.Context, name, description string) (*store.Project, error)
	ListProjects(ctx context.Context) ([]*store.Project, error)
	ProjectExists(ctx context.Context, id string) (bool, error)
	ListTasks(ctx context.Context, projectID string) ([]*store.Task, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	controller   *authoring.Controller
	checker      *health.Checker
	directory    Directory // nil when persistence is disabled
	metrics      *metrics.Metrics
	sseKeepAlive time.Duration
	logger       zerolog.Logger
}

// NewHandlers creates a new Handlers instance. directory may be nil.
func NewHandlers(controller *authoring.Controller, checker *health.Checker, directory Directory, m *metrics.Metrics, sseKeepAlive time.Duration, logger zerolog.Logger) *Handlers {
	if sseKeepAlive <= 0 {
		sseKeepAlive = 15 * time.Second
	}
	return &Handlers{
		controller:   controller,
		checker:      checker,
		directory:    directory,
		metrics:      m,
		sseKeepAlive: sseKeepAlive,
		logger:       logger.With().Str("component", "handlers").Logger(),
	}
}

// StartConversation handles POST /api/v1/conversations.
func (h *Handlers) StartConversation(c *fiber.Ctx) error {
	var req StartConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.ProjectID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_project_id", "Bad Request",
			"projectId is required")
	}

	session, cerr := h.controller.Start(c.Context(), req.ProjectID)
	if cerr != nil {
		return engineError(c, cerr)
	}
	return c.Status(fiber.StatusCreated).JSON(SessionResponse{Session: session})
}

// GetConversation handles GET /api/v1/conversations/:id.
func (h *Handlers) GetConversation(c *fiber.Ctx) error {
	id := c.Params("id")
	session, ok := h.controller.GetSession(id)
	if !ok {
		return problemResponse(c, fiber.StatusNotFound,
			string(authoring.CodeSessionNotFound), "Not Found",
			"Conversation not found: "+id)
	}
	return c.JSON(SessionResponse{Session: session})
}

// SendMessage handles POST /api/v1/conversations/:id/messages.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Content == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_content", "Bad Request",
			"content is required")
	}

	session, cerr := h.controller.SendMessage(c.Context(), c.Params("id"), req.Content, nil)
	if cerr != nil {
		return engineError(c, cerr)
	}
	return c.JSON(SessionResponse{Session: session})
}

// AnswerQuestions handles POST /api/v1/conversations/:id/answers.
func (h *Handlers) AnswerQuestions(c *fiber.Ctx) error {
	var req AnswerQuestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.QuestionsID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_questions_id", "Bad Request",
			"questionsId is required")
	}

	session, cerr := h.controller.AnswerQuestions(c.Context(), c.Params("id"), req.QuestionsID, req.Answers, nil)
	if cerr != nil {
		return engineError(c, cerr)
	}
	return c.JSON(SessionResponse{Session: session})
}

// SkipQuestions handles POST /api/v1/conversations/:id/skip.
func (h *Handlers) SkipQuestions(c *fiber.Ctx) error {
	session, cerr := h.controller.SkipQuestions(c.Context(), c.Params("id"), nil)
	if cerr != nil {
		return engineError(c, cerr)
	}
	return c.JSON(SessionResponse{Session: session})
}

// AcceptSuggestion handles POST /api/v1/conversations/:id/accept.
func (h *Handlers) AcceptSuggestion(c *fiber.Ctx) error {
	var req AcceptSuggestionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request",
				"Invalid request body: "+err.Error())
		}
	}

	id := c.Params("id")
	taskID, cerr := h.controller.AcceptSuggestion(c.Context(), id, req.Overrides)
	if cerr != nil {
		return engineError(c, cerr)
	}

	session, _ := h.controller.GetSession(id)
	return c.Status(fiber.StatusCreated).JSON(AcceptResponse{TaskID: taskID, Session: session})
}

// CancelConversation handles POST /api/v1/conversations/:id/cancel.
func (h *Handlers) CancelConversation(c *fiber.Ctx) error {
	session, cerr := h.controller.Cancel(c.Context(), c.Params("id"))
	if cerr != nil {
		return engineError(c, cerr)
	}
	return c.JSON(SessionResponse{Session: session})
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	if h.directory == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"persistence_disabled", "Service Unavailable",
			"Project management requires a configured database")
	}

	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Name == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_name", "Bad Request",
			"name is required")
	}

	project, err := h.directory.CreateProject(c.Context(), req.Name, req.Description)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			string(authoring.CodeDatabaseError), "Internal Server Error",
			err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	if h.directory == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"persistence_disabled", "Service Unavailable",
			"Project management requires a configured database")
	}

	projects, err := h.directory.ListProjects(c.Context())
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			string(authoring.CodeDatabaseError), "Internal Server Error",
			err.Error())
	}
	if projects == nil {
		projects = []*store.Project{}
	}
	return c.JSON(fiber.Map{"projects": projects})
}

// ListProjectTasks handles GET /api/v1/projects/:id/tasks.
func (h *Handlers) ListProjectTasks(c *fiber.Ctx) error {
	if h.directory == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"persistence_disabled", "Service Unavailable",
			"Project management requires a configured database")
	}

	id := c.Params("id")
	exists, err := h.directory.ProjectExists(c.Context(), id)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			string(authoring.CodeDatabaseError), "Internal Server Error",
			err.Error())
	}
	if !exists {
		return problemResponse(c, fiber.StatusNotFound,
			string(authoring.CodeProjectNotFound), "Not Found",
			"Project not found: "+id)
	}

	tasks, err := h.directory.ListTasks(c.Context(), id)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			string(authoring.CodeDatabaseError), "Internal Server Error",
			err.Error())
	}
	if tasks == nil {
		tasks = []*store.Task{}
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
