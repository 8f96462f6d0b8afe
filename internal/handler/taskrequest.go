package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/notify"
	"github.com/dukerupert/flatmate/internal/store"
)

type TaskRequestHandler struct {
	taskStore      *store.TaskStore
	apartmentStore *store.ApartmentStore
	notifier       *notify.Notifier
	logger         *slog.Logger
}

func NewTaskRequestHandler(ts *store.TaskStore, aps *store.ApartmentStore, n *notify.Notifier, logger *slog.Logger) *TaskRequestHandler {
	return &TaskRequestHandler{taskStore: ts, apartmentStore: aps, notifier: n, logger: logger}
}

// SetState records the caller's decision on their own request, then checks
// whether the task now has unanimous acceptance. Conversion happens inside
// the store; this handler only reports what came out.
func (h *TaskRequestHandler) SetState(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ac, _ := auth.FromContext(r.Context())

	updated, err := h.taskStore.SetRequestState(id, ac.AccountID, req.State)
	if err != nil {
		h.logger.Error("set request state", "error", err, "request_id", id)
		writeStoreError(w, err)
		return
	}

	task, err := h.taskStore.GetByID(updated.TaskID)
	if err != nil || task == nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	assignments, err := h.taskStore.ConvertIfAllAccepted(task.ID)
	if err != nil {
		h.logger.Error("convert task", "error", err, "task_id", task.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var memberIDs []int64
	if ac.ApartmentID != nil {
		if ids, err := h.apartmentStore.MemberIDs(*ac.ApartmentID); err == nil {
			memberIDs = ids
			h.notifier.RequestStateChanged(memberIDs, task.Name, ac.Username, updated.State)
		}
	}

	if assignments == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"request":   updated,
			"converted": false,
		})
		return
	}

	views, err := h.taskStore.ListAssignmentViewsByTask(task.ID)
	if err != nil {
		h.logger.Error("list assignment views", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if len(memberIDs) > 0 {
		ordered := make([]string, len(views))
		for i, v := range views {
			ordered[i] = v.Assignee.Username
		}
		h.notifier.TaskAssigned(memberIDs, task.Name, ordered)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request":     updated,
		"converted":   true,
		"assignments": views,
	})
}
