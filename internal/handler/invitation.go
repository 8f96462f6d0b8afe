package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/notify"
	"github.com/dukerupert/flatmate/internal/store"
)

type InvitationHandler struct {
	invitationStore *store.InvitationStore
	apartmentStore  *store.ApartmentStore
	accountStore    *store.AccountStore
	notifier        *notify.Notifier
	logger          *slog.Logger
}

func NewInvitationHandler(is *store.InvitationStore, aps *store.ApartmentStore, as *store.AccountStore, n *notify.Notifier, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitationStore: is,
		apartmentStore:  aps,
		accountStore:    as,
		notifier:        n,
		logger:          logger,
	}
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if ac.ApartmentID == nil {
		writeError(w, http.StatusBadRequest, "you must be a member of an apartment to invite")
		return
	}
	if req.Username == ac.Username {
		writeError(w, http.StatusBadRequest, "you cannot invite yourself")
		return
	}

	invitee, err := h.accountStore.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("invitee lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if invitee == nil {
		writeError(w, http.StatusNotFound, "no account with username "+req.Username)
		return
	}
	if invitee.ApartmentID != nil {
		writeError(w, http.StatusBadRequest, req.Username+" is already a member of an apartment")
		return
	}

	invitation, err := h.invitationStore.Create(ac.AccountID, invitee.ID, *ac.ApartmentID)
	if err != nil {
		h.logger.Error("create invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	apartment, err := h.apartmentStore.GetByID(*ac.ApartmentID)
	if err == nil && apartment != nil {
		h.notifier.InvitationCreated(invitee.ID, ac.Username, invitee.Username, apartment.Name)
	}

	writeJSON(w, http.StatusCreated, invitation)
}

// ListMine returns the caller's sent and received invitations.
func (h *InvitationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	sent, err := h.invitationStore.ListSentBy(accountID)
	if err != nil {
		h.logger.Error("list sent invitations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	received, err := h.invitationStore.ListReceivedBy(accountID)
	if err != nil {
		h.logger.Error("list received invitations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if sent == nil {
		sent = []model.InvitationView{}
	}
	if received == nil {
		received = []model.InvitationView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "received": received})
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	view, ok := h.loadForParty(w, r, func(v *model.InvitationView, accountID int64) bool {
		return v.Invitee.ID == accountID
	})
	if !ok {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if ac.ApartmentID != nil {
		writeError(w, http.StatusBadRequest, "you are already a member of an apartment")
		return
	}

	withdrawn, err := h.invitationStore.Accept(view.ID)
	if err != nil {
		h.logger.Error("accept invitation", "error", err)
		writeStoreError(w, err)
		return
	}

	memberIDs, err := h.apartmentStore.MemberIDs(view.Apartment.ID)
	if err == nil {
		h.notifier.InvitationAccepted(memberIDs, view.Invitor.Username, view.Invitee.Username, view.Apartment.Name)
	}
	for _, other := range withdrawn {
		h.notifier.InvitationRejected(other.Invitor.ID, other.Invitor.Username, other.Invitee.Username, other.Apartment.Name)
	}

	writeJSON(w, http.StatusOK, view.Apartment)
}

func (h *InvitationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	view, ok := h.loadForParty(w, r, func(v *model.InvitationView, accountID int64) bool {
		return v.Invitee.ID == accountID
	})
	if !ok {
		return
	}

	if err := h.invitationStore.Delete(view.ID); err != nil {
		h.logger.Error("reject invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.notifier.InvitationRejected(view.Invitor.ID, view.Invitor.Username, view.Invitee.Username, view.Apartment.Name)

	w.WriteHeader(http.StatusNoContent)
}

func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	view, ok := h.loadForParty(w, r, func(v *model.InvitationView, accountID int64) bool {
		return v.Invitor.ID == accountID
	})
	if !ok {
		return
	}

	if err := h.invitationStore.Delete(view.ID); err != nil {
		h.logger.Error("cancel invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.notifier.InvitationCanceled(view.Invitee.ID, view.Invitor.Username, view.Invitee.Username, view.Apartment.Name)

	w.WriteHeader(http.StatusNoContent)
}

// loadForParty fetches the invitation and checks the caller is the permitted
// party for the operation. Writes the error response itself on failure.
func (h *InvitationHandler) loadForParty(w http.ResponseWriter, r *http.Request, permitted func(*model.InvitationView, int64) bool) (*model.InvitationView, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	view, err := h.invitationStore.GetView(id)
	if err != nil {
		h.logger.Error("get invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if view == nil {
		writeError(w, http.StatusNotFound, "invitation not found")
		return nil, false
	}
	if !permitted(view, auth.AccountID(r.Context())) {
		writeError(w, http.StatusForbidden, "not your invitation")
		return nil, false
	}
	return view, true
}
