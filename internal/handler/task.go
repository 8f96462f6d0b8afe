package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/notify"
	"github.com/dukerupert/flatmate/internal/rotation"
	"github.com/dukerupert/flatmate/internal/store"
)

type TaskHandler struct {
	taskStore      *store.TaskStore
	apartmentStore *store.ApartmentStore
	accountStore   *store.AccountStore
	notifier       *notify.Notifier
	logger         *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, aps *store.ApartmentStore, as *store.AccountStore, n *notify.Notifier, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskStore:      ts,
		apartmentStore: aps,
		accountStore:   as,
		notifier:       n,
		logger:         logger,
	}
}

type taskRequestBody struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Frequency   int       `json:"frequency"`
	Difficulty  int       `json:"difficulty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Assignees   []string  `json:"assignees"`
}

func (b *taskRequestBody) validate() string {
	b.Name = strings.TrimSpace(b.Name)
	switch {
	case b.Name == "":
		return "name is required"
	case b.Frequency < 1:
		return "frequency must be at least 1"
	case b.Difficulty < 0 || b.Difficulty > 10:
		return "difficulty must be between 0 and 10"
	case b.Start.IsZero() || b.End.IsZero():
		return "start and end are required"
	}
	return ""
}

// resolveAssignees maps assignee usernames to member profiles, reporting any
// usernames that are not members of the apartment.
func (h *TaskHandler) resolveAssignees(w http.ResponseWriter, apartmentID int64, usernames []string) ([]model.Profile, bool) {
	if len(usernames) == 0 {
		writeError(w, http.StatusBadRequest, "at least one assignee is required")
		return nil, false
	}

	view, err := h.apartmentStore.GetView(apartmentID)
	if err != nil || view == nil {
		h.logger.Error("get apartment view", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}

	byUsername := make(map[string]model.Profile, len(view.Members))
	for _, m := range view.Members {
		byUsername[m.Username] = m
	}

	var assignees []model.Profile
	var outsiders []string
	seen := make(map[string]bool, len(usernames))
	for _, username := range usernames {
		if seen[username] {
			writeError(w, http.StatusBadRequest, "duplicate assignee "+username)
			return nil, false
		}
		seen[username] = true
		member, ok := byUsername[username]
		if !ok {
			outsiders = append(outsiders, username)
			continue
		}
		assignees = append(assignees, member)
	}
	if len(outsiders) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(outsiders, ", ")+" are not members of this apartment")
		return nil, false
	}
	return assignees, true
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if ac.ApartmentID == nil {
		writeError(w, http.StatusBadRequest, "you must be a member of an apartment")
		return
	}

	var req taskRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	assignees, ok := h.resolveAssignees(w, *ac.ApartmentID, req.Assignees)
	if !ok {
		return
	}
	assigneeIDs := make([]int64, len(assignees))
	for i, a := range assignees {
		assigneeIDs[i] = a.ID
	}

	task, err := h.taskStore.Create(req.Name, req.Description, req.Frequency, req.Difficulty, req.Start, req.End, ac.AccountID, assigneeIDs)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	requests, err := h.taskStore.ListRequestViewsByTask(task.ID)
	if err != nil {
		h.logger.Error("list request views", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if memberIDs, err := h.apartmentStore.MemberIDs(*ac.ApartmentID); err == nil {
		h.notifier.TaskCreated(memberIDs, task.Name, ac.Username, req.Assignees)
	}

	writeJSON(w, http.StatusCreated, model.TaskRequests{Task: *task, Requests: requests})
}

// Get returns a task in its current regime: the request set while the task
// is being negotiated, the ordered assignment list once converted.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadForMember(w, r)
	if !ok {
		return
	}

	requests, err := h.taskStore.ListRequestViewsByTask(task.ID)
	if err != nil {
		h.logger.Error("list request views", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(requests) > 0 {
		writeJSON(w, http.StatusOK, model.TaskRequests{Task: *task, Requests: requests})
		return
	}

	assignments, err := h.taskStore.ListAssignmentViewsByTask(task.ID)
	if err != nil {
		h.logger.Error("list assignment views", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, model.TaskAssignments{Task: *task, Assignments: assignments})
}

// ListMine returns the caller's pending requests and active assignments.
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	requests, err := h.taskStore.ListRequestsForAssignee(accountID)
	if err != nil {
		h.logger.Error("list requests for assignee", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	assignments, err := h.taskStore.ListAssignmentsForAssignee(accountID)
	if err != nil {
		h.logger.Error("list assignments for assignee", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if requests == nil {
		requests = []model.TaskRequests{}
	}
	if assignments == nil {
		assignments = []model.TaskAssignments{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests":    requests,
		"assignments": assignments,
	})
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.loadForCreatorOrAdmin(w, r)
	if !ok {
		return
	}

	var req taskRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.taskStore.Update(task.ID, req.Name, req.Description, req.Frequency, req.Difficulty, req.Start, req.End)
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if memberIDs, err := h.apartmentStore.MemberIDs(*ac.ApartmentID); err == nil {
		h.notifier.TaskUpdated(memberIDs, updated.Name, ac.Username)
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.loadForCreatorOrAdmin(w, r)
	if !ok {
		return
	}

	if err := h.taskStore.Delete(task.ID); err != nil {
		h.logger.Error("delete task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if memberIDs, err := h.apartmentStore.MemberIDs(*ac.ApartmentID); err == nil {
		h.notifier.TaskDeleted(memberIDs, task.Name, ac.Username)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reorder rewrites the rotation of an assigned task. The submitted username
// list must contain every current assignee exactly once.
func (h *TaskHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.loadForCreatorOrAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		Order []string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Order) == 0 {
		writeError(w, http.StatusBadRequest, "order must be a non-empty list of usernames")
		return
	}

	views, err := h.taskStore.ListAssignmentViewsByTask(task.ID)
	if err != nil {
		h.logger.Error("list assignment views", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(views) == 0 {
		writeError(w, http.StatusBadRequest, "task hasn't been assigned to anyone")
		return
	}

	current := make([]string, len(views))
	byUsername := make(map[string]int64, len(views))
	for i, v := range views {
		current[i] = v.Assignee.Username
		byUsername[v.Assignee.Username] = v.Assignee.ID
	}
	if !rotation.IsPermutation(req.Order, current) {
		writeError(w, http.StatusBadRequest, "order must contain all current assignees")
		return
	}

	orderedIDs := make([]int64, len(req.Order))
	for i, username := range req.Order {
		orderedIDs[i] = byUsername[username]
	}

	if err := h.taskStore.ReorderAssignments(task.ID, orderedIDs); err != nil {
		h.logger.Error("reorder assignments", "error", err, "task_id", task.ID)
		writeStoreError(w, err)
		return
	}

	updated, err := h.taskStore.ListAssignmentViewsByTask(task.ID)
	if err != nil {
		h.logger.Error("list assignment views", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if memberIDs, err := h.apartmentStore.MemberIDs(*ac.ApartmentID); err == nil {
		others := memberIDs[:0]
		for _, id := range memberIDs {
			if id != ac.AccountID {
				others = append(others, id)
			}
		}
		h.notifier.TaskReordered(others, task.Name, ac.Username)
	}

	writeJSON(w, http.StatusOK, model.TaskAssignments{Task: *task, Assignments: updated})
}

// UpdateAssignees rebuilds a task's candidate set, dropping it back to the
// requested regime if it had already converted.
func (h *TaskHandler) UpdateAssignees(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	task, ok := h.loadForCreatorOrAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		Assignees []string `json:"assignees"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	assignees, ok := h.resolveAssignees(w, *ac.ApartmentID, req.Assignees)
	if !ok {
		return
	}
	assigneeIDs := make([]int64, len(assignees))
	for i, a := range assignees {
		assigneeIDs[i] = a.ID
	}

	if err := h.taskStore.UpdateAssignees(task.ID, assigneeIDs); err != nil {
		h.logger.Error("update assignees", "error", err, "task_id", task.ID)
		writeStoreError(w, err)
		return
	}

	requests, err := h.taskStore.ListRequestViewsByTask(task.ID)
	if err != nil {
		h.logger.Error("list request views", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if memberIDs, err := h.apartmentStore.MemberIDs(*ac.ApartmentID); err == nil {
		h.notifier.TaskReassigned(memberIDs, task.Name, ac.Username)
	}

	writeJSON(w, http.StatusOK, model.TaskRequests{Task: *task, Requests: requests})
}

// loadForMember fetches the task and checks the caller shares an apartment
// with its creator.
func (h *TaskHandler) loadForMember(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	task, ok := h.load(w, r)
	if !ok {
		return nil, false
	}

	ac, _ := auth.FromContext(r.Context())
	creator, err := h.accountStore.GetByID(task.CreatorID)
	if err != nil {
		h.logger.Error("get creator", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if ac.ApartmentID == nil || creator == nil || creator.ApartmentID == nil || *creator.ApartmentID != *ac.ApartmentID {
		writeError(w, http.StatusForbidden, "task belongs to another apartment")
		return nil, false
	}
	return task, true
}

// loadForCreatorOrAdmin fetches the task and checks the caller is its creator
// or the apartment admin.
func (h *TaskHandler) loadForCreatorOrAdmin(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	task, ok := h.loadForMember(w, r)
	if !ok {
		return nil, false
	}

	ac, _ := auth.FromContext(r.Context())
	if task.CreatorID == ac.AccountID {
		return task, true
	}
	apartment, err := h.apartmentStore.GetByID(*ac.ApartmentID)
	if err != nil || apartment == nil {
		h.logger.Error("get apartment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if apartment.AdminID != ac.AccountID {
		writeError(w, http.StatusForbidden, "only the task creator or the admin can do this")
		return nil, false
	}
	return task, true
}

func (h *TaskHandler) load(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	task, err := h.taskStore.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return task, true
}
