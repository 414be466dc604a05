package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jiralite/api/internal/service/ai"
	"github.com/jiralite/api/internal/service/auth"
	"github.com/jiralite/api/internal/service/comment"
	"github.com/jiralite/api/internal/service/dashboard"
	"github.com/jiralite/api/internal/service/issue"
	"github.com/jiralite/api/internal/service/notification"
	"github.com/jiralite/api/internal/service/project"
	"github.com/jiralite/api/internal/service/team"
	"github.com/jiralite/api/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	auth         auth.Service
	team         team.Service
	project      project.Service
	issue        issue.Service
	comment      comment.Service
	dashboard    dashboard.Service
	ai           ai.Service
	notification notification.Service
	hub          *ws.Hub
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	dbHealth     func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	aiRequestTotal     *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitAI        = 30
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, teamSvc team.Service, projectSvc project.Service, issueSvc issue.Service, commentSvc comment.Service, dashboardSvc dashboard.Service, aiSvc ai.Service, notificationSvc notification.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		auth:         authSvc,
		team:         teamSvc,
		project:      projectSvc,
		issue:        issueSvc,
		comment:      commentSvc,
		dashboard:    dashboardSvc,
		ai:           aiSvc,
		notification: notificationSvc,
		hub:          hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/refresh", r.audit("/auth/refresh", r.withRateLimit("/auth/refresh", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleRefresh)))
	r.mux.HandleFunc("/auth/password/forgot", r.audit("/auth/password/forgot", r.withRateLimit("/auth/password/forgot", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handlePasswordForgot)))
	r.mux.HandleFunc("/auth/password/reset", r.audit("/auth/password/reset", r.withRateLimit("/auth/password/reset", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handlePasswordReset)))
	r.mux.HandleFunc("/auth/password/change", r.audit("/auth/password/change", r.handlerAuthRate("/auth/password/change", rateLimitUserWrite, rateWindowDefault, r.handlePasswordChange)))
	r.mux.HandleFunc("/auth/me", r.audit("/auth/me", r.handlerAuthRate("/auth/me", rateLimitUserRead, rateWindowDefault, r.handleMe)))

	r.mux.HandleFunc("/teams", r.audit("/teams", r.handlerAuthRate("/teams", rateLimitUserWrite, rateWindowDefault, r.handleTeams)))
	r.mux.HandleFunc("/teams/", r.audit("/teams/", r.handlerAuthRate("/teams/", rateLimitUserWrite, rateWindowDefault, r.handleTeamSubroutes)))
	r.mux.HandleFunc("/invites/accept", r.audit("/invites/accept", r.handlerAuthRate("/invites/accept", rateLimitUserWrite, rateWindowDefault, r.handleAcceptInvite)))

	r.mux.HandleFunc("/projects/", r.audit("/projects/", r.handlerAuthRate("/projects/", rateLimitUserWrite, rateWindowDefault, r.handleProjectSubroutes)))
	r.mux.HandleFunc("/issues/", r.audit("/issues/", r.handlerAuthRate("/issues/", rateLimitUserWrite, rateWindowDefault, r.handleIssueSubroutes)))
	r.mux.HandleFunc("/comments/", r.audit("/comments/", r.handlerAuthRate("/comments/", rateLimitUserWrite, rateWindowDefault, r.handleCommentSubroutes)))

	r.mux.HandleFunc("/notifications", r.audit("/notifications", r.handlerAuthRate("/notifications", rateLimitUserRead, rateWindowDefault, r.handleNotifications)))
	r.mux.HandleFunc("/notifications/", r.audit("/notifications/", r.handlerAuthRate("/notifications/", rateLimitUserWrite, rateWindowDefault, r.handleNotificationSubroutes)))
	r.mux.HandleFunc("/dashboard", r.audit("/dashboard", r.handlerAuthRate("/dashboard", rateLimitUserRead, rateWindowDefault, r.handleDashboard)))
	r.mux.HandleFunc("/ws/notifications", r.audit("/ws/notifications", r.handlerAuthRate("/ws/notifications", rateLimitWebsocket, rateWindowRealtime, r.handleNotificationsWS)))
}

func (r *Router) currentUser(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return authInfo{}, false
	}
	return info, true
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tokens, err := r.auth.Refresh(req.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (r *Router) handlePasswordForgot(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.auth.RequestPasswordReset(req.Context(), payload.Email); err != nil {
		r.logger.Error("password reset request failed", "error", err)
	}
	// Same response whether or not the address has an account.
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for this email, a reset link has been sent",
	})
}

func (r *Router) handlePasswordReset(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.auth.ConfirmPasswordReset(req.Context(), payload.Token, payload.Password); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (r *Router) handlePasswordChange(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	var payload struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=8"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.auth.ChangePassword(req.Context(), info.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": info.UserID, "email": info.Email})
}

func (r *Router) handleTeams(w http.ResponseWriter, req *http.Request) {
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name string `json:"name" validate:"required"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		summary, err := r.team.Create(req.Context(), info.UserID, payload.Name)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, summary)
	case http.MethodGet:
		summaries, err := r.team.ListMine(req.Context(), info.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/teams/"), "/")
	teamID := parts[0]
	if teamID == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		r.handleTeam(w, req, info, teamID)
	case len(parts) == 2 && parts[1] == "members":
		r.handleTeamMembers(w, req, info, teamID)
	case len(parts) == 3 && parts[1] == "members" && parts[2] != "":
		r.handleTeamMember(w, req, info, teamID, parts[2])
	case len(parts) == 2 && parts[1] == "invites":
		r.handleTeamInvites(w, req, info, teamID)
	case len(parts) == 2 && parts[1] == "leave":
		r.handleTeamLeave(w, req, info, teamID)
	case len(parts) == 2 && parts[1] == "activity":
		r.handleTeamActivity(w, req, info, teamID)
	case len(parts) == 2 && parts[1] == "projects":
		r.handleTeamProjects(w, req, info, teamID)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTeam(w http.ResponseWriter, req *http.Request, info authInfo, teamID string) {
	switch req.Method {
	case http.MethodGet:
		summary, err := r.team.Get(req.Context(), info.UserID, teamID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	case http.MethodPatch:
		var payload struct {
			Name string `json:"name" validate:"required"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := r.team.Update(req.Context(), info.UserID, teamID, payload.Name)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.team.Delete(req.Context(), info.UserID, teamID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "team deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamMembers(w http.ResponseWriter, req *http.Request, info authInfo, teamID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	members, err := r.team.Members(req.Context(), info.UserID, teamID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (r *Router) handleTeamMember(w http.ResponseWriter, req *http.Request, info authInfo, teamID, targetID string) {
	switch req.Method {
	case http.MethodPatch:
		var payload struct {
			Role string `json:"role" validate:"required"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := r.team.ChangeRole(req.Context(), info.UserID, teamID, targetID, payload.Role); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
	case http.MethodDelete:
		if err := r.team.Kick(req.Context(), info.UserID, teamID, targetID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "member removed"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamInvites(w http.ResponseWriter, req *http.Request, info authInfo, teamID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role" validate:"required"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	invite, err := r.team.Invite(req.Context(), info.UserID, teamID, payload.Email, payload.Role)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (r *Router) handleAcceptInvite(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	var payload struct {
		Token string `json:"token" validate:"required"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.team.AcceptInvite(req.Context(), info.UserID, payload.Token); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "invitation accepted"})
}

func (r *Router) handleTeamLeave(w http.ResponseWriter, req *http.Request, info authInfo, teamID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if err := r.team.Leave(req.Context(), info.UserID, teamID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "left team"})
}

func (r *Router) handleTeamActivity(w http.ResponseWriter, req *http.Request, info authInfo, teamID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	entries, err := r.team.Activity(req.Context(), info.UserID, teamID, limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Router) handleTeamProjects(w http.ResponseWriter, req *http.Request, info authInfo, teamID string) {
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name        string `json:"name" validate:"required"`
			Description string `json:"description"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := r.project.Create(req.Context(), info.UserID, teamID, payload.Name, payload.Description)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		summaries, err := r.project.ListByTeam(req.Context(), info.UserID, teamID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/projects/"), "/")
	projectID := parts[0]
	if projectID == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		r.handleProject(w, req, info, projectID)
	case len(parts) == 2 && parts[1] == "favorite":
		r.handleProjectFavorite(w, req, info, projectID)
	case len(parts) == 2 && parts[1] == "labels":
		r.handleProjectLabels(w, req, info, projectID)
	case len(parts) == 2 && parts[1] == "statuses":
		r.handleProjectStatuses(w, req, info, projectID)
	case len(parts) == 2 && parts[1] == "issues":
		r.handleProjectIssues(w, req, info, projectID)
	case len(parts) == 3 && parts[1] == "issues" && parts[2] == "duplicates":
		r.handleDetectDuplicates(w, req, info, projectID)
	case len(parts) == 2 && parts[1] == "dashboard":
		r.handleProjectDashboard(w, req, info, projectID)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	switch req.Method {
	case http.MethodGet:
		summary, err := r.project.Get(req.Context(), info.UserID, projectID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	case http.MethodPatch:
		var payload struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			Archived    *bool   `json:"archived"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := r.project.Update(req.Context(), info.UserID, projectID, project.UpdateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Archived:    payload.Archived,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.project.Delete(req.Context(), info.UserID, projectID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectFavorite(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	fav, err := r.project.ToggleFavorite(req.Context(), info.UserID, projectID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_favorite": fav})
}

func (r *Router) handleProjectLabels(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name  string `json:"name" validate:"required"`
			Color string `json:"color"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		label, err := r.project.CreateLabel(req.Context(), info.UserID, projectID, payload.Name, payload.Color)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, label)
	case http.MethodGet:
		labels, err := r.project.Labels(req.Context(), info.UserID, projectID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, labels)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectStatuses(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name     string `json:"name" validate:"required"`
			Color    string `json:"color"`
			Position int    `json:"position"`
			WIPLimit *int   `json:"wip_limit"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status, err := r.project.CreateCustomStatus(req.Context(), info.UserID, projectID, payload.Name, payload.Color, payload.Position, payload.WIPLimit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, status)
	case http.MethodGet:
		statuses, err := r.project.CustomStatuses(req.Context(), info.UserID, projectID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statuses)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectIssues(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Title       string  `json:"title" validate:"required"`
			Description string  `json:"description"`
			Status      string  `json:"status"`
			Priority    string  `json:"priority"`
			AssigneeID  *string `json:"assignee_user_id"`
			DueDate     *string `json:"due_date"`
			Position    int     `json:"position"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in := issue.CreateInput{
			Title:       payload.Title,
			Description: payload.Description,
			Status:      payload.Status,
			Priority:    payload.Priority,
			AssigneeID:  payload.AssigneeID,
			Position:    payload.Position,
		}
		if payload.DueDate != nil {
			due, err := time.Parse(time.RFC3339, *payload.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid due_date format")
				return
			}
			in.DueDate = &due
		}
		created, err := r.issue.Create(req.Context(), info.UserID, projectID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		issues, err := r.issue.List(req.Context(), info.UserID, projectID, req.URL.Query().Get("status"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, issues)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleDetectDuplicates(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Title string `json:"title" validate:"required"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	similar, err := r.ai.DetectDuplicates(req.Context(), info.UserID, projectID, payload.Title)
	if err != nil {
		r.recordAIRequest("duplicates", "error")
		writeAppError(w, err)
		return
	}
	r.recordAIRequest("duplicates", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"similar_issues": similar})
}

func (r *Router) handleProjectDashboard(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	stats, err := r.dashboard.Project(req.Context(), info.UserID, projectID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (r *Router) handleIssueSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/issues/"), "/")
	issueID := parts[0]
	if issueID == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		r.handleIssue(w, req, info, issueID)
	case len(parts) == 2 && parts[1] == "comments":
		r.handleIssueComments(w, req, info, issueID)
	case len(parts) == 3 && parts[1] == "ai":
		r.handleIssueAI(w, req, info, issueID, parts[2])
	default:
		r.notFound(w)
	}
}

func (r *Router) handleIssue(w http.ResponseWriter, req *http.Request, info authInfo, issueID string) {
	switch req.Method {
	case http.MethodGet:
		found, err := r.issue.Get(req.Context(), info.UserID, issueID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	case http.MethodPatch:
		var payload struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Status      *string `json:"status"`
			Priority    *string `json:"priority"`
			AssigneeID  *string `json:"assignee_user_id"`
			DueDate     *string `json:"due_date"`
			Position    *int    `json:"position"`
		}
		body := map[string]any{}
		// Double decode keeps field-presence detection for clearable fields.
		if err := decodeBodyTwice(req, &payload, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		_, hasAssignee := body["assignee_user_id"]
		_, hasDueDate := body["due_date"]
		in := issue.UpdateInput{
			Title:       payload.Title,
			Description: payload.Description,
			Status:      payload.Status,
			Priority:    payload.Priority,
			AssigneeID:  payload.AssigneeID,
			SetAssignee: hasAssignee,
			Position:    payload.Position,
			SetDueDate:  hasDueDate,
		}
		if payload.DueDate != nil {
			due, err := time.Parse(time.RFC3339, *payload.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid due_date format")
				return
			}
			in.DueDate = &due
		}
		updated, err := r.issue.Update(req.Context(), info.UserID, issueID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.issue.Delete(req.Context(), info.UserID, issueID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "issue deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleIssueComments(w http.ResponseWriter, req *http.Request, info authInfo, issueID string) {
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Content string `json:"content" validate:"required"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := r.comment.Create(req.Context(), info.UserID, issueID, payload.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
		comments, err := r.comment.List(req.Context(), info.UserID, issueID, limit, offset)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comments)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleIssueAI(w http.ResponseWriter, req *http.Request, info authInfo, issueID, feature string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	switch feature {
	case "summary":
		result, err := r.ai.IssueSummary(req.Context(), info.UserID, issueID)
		if err != nil {
			r.recordAIRequest("summary", "error")
			writeAppError(w, err)
			return
		}
		r.recordAIRequest("summary", aiOutcome(result.Cached))
		writeJSON(w, http.StatusOK, result)
	case "suggestion":
		result, err := r.ai.IssueSuggestion(req.Context(), info.UserID, issueID)
		if err != nil {
			r.recordAIRequest("suggestion", "error")
			writeAppError(w, err)
			return
		}
		r.recordAIRequest("suggestion", aiOutcome(result.Cached))
		writeJSON(w, http.StatusOK, result)
	case "labels":
		recommended, err := r.ai.RecommendLabels(req.Context(), info.UserID, issueID)
		if err != nil {
			r.recordAIRequest("labels", "error")
			writeAppError(w, err)
			return
		}
		r.recordAIRequest("labels", "ok")
		writeJSON(w, http.StatusOK, map[string]any{"recommended_labels": recommended})
	case "thread-summary":
		result, err := r.ai.SummarizeComments(req.Context(), info.UserID, issueID)
		if err != nil {
			r.recordAIRequest("thread_summary", "error")
			writeAppError(w, err)
			return
		}
		r.recordAIRequest("thread_summary", "ok")
		writeJSON(w, http.StatusOK, result)
	default:
		r.notFound(w)
	}
}

func aiOutcome(cached bool) string {
	if cached {
		return "cached"
	}
	return "ok"
}

func (r *Router) handleCommentSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	commentID := strings.TrimPrefix(req.URL.Path, "/comments/")
	if commentID == "" || strings.Contains(commentID, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodPatch:
		var payload struct {
			Content string `json:"content" validate:"required"`
		}
		if err := decodeJSON(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := r.comment.Update(req.Context(), info.UserID, commentID, payload.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.comment.Delete(req.Context(), info.UserID, commentID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "comment deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleNotifications(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	unreadOnly := req.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	notifications, err := r.notification.List(req.Context(), info.UserID, unreadOnly, limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (r *Router) handleNotificationSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	trimmed := strings.TrimPrefix(req.URL.Path, "/notifications/")
	switch {
	case trimmed == "unread-count":
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		count, err := r.notification.UnreadCount(req.Context(), info.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
	case trimmed == "read-all":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		if err := r.notification.MarkAllRead(req.Context(), info.UserID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "all notifications marked read"})
	case strings.HasSuffix(trimmed, "/read"):
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		id := strings.TrimSuffix(trimmed, "/read")
		if id == "" || strings.Contains(id, "/") {
			r.notFound(w)
			return
		}
		updated, err := r.notification.MarkRead(req.Context(), info.UserID, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	personal, err := r.dashboard.Me(req.Context(), info.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personal)
}

func (r *Router) handleNotificationsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(info.UserID, client)
	go func() {
		defer func() {
			r.hub.Unregister(info.UserID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			fields = append(fields, "user_id", info.UserID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
