package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/notify"
	"github.com/dukerupert/flatmate/internal/store"
)

type ApartmentHandler struct {
	apartmentStore *store.ApartmentStore
	accountStore   *store.AccountStore
	notifier       *notify.Notifier
	logger         *slog.Logger
}

func NewApartmentHandler(aps *store.ApartmentStore, as *store.AccountStore, n *notify.Notifier, logger *slog.Logger) *ApartmentHandler {
	return &ApartmentHandler{apartmentStore: aps, accountStore: as, notifier: n, logger: logger}
}

func (h *ApartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "apartment name is required")
		return
	}

	apartment, err := h.apartmentStore.Create(req.Name, auth.AccountID(r.Context()))
	if err != nil {
		h.logger.Error("create apartment", "error", err)
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, apartment)
}

// GetMine returns the caller's apartment with member profiles, or 204 when
// the caller has none.
func (h *ApartmentHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	apartmentID := auth.ApartmentID(r.Context())
	if apartmentID == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	view, err := h.apartmentStore.GetView(apartmentID)
	if err != nil {
		h.logger.Error("get apartment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, "apartment not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete tears down the caller's apartment. Admin only.
func (h *ApartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	apartment, err := h.apartmentStore.GetByID(id)
	if err != nil {
		h.logger.Error("get apartment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if apartment == nil {
		writeError(w, http.StatusNotFound, "apartment not found")
		return
	}
	if apartment.AdminID != auth.AccountID(r.Context()) {
		writeError(w, http.StatusForbidden, "only the admin can delete the apartment")
		return
	}

	memberIDs, err := h.apartmentStore.MemberIDs(id)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.apartmentStore.Delete(id); err != nil {
		h.logger.Error("delete apartment", "error", err)
		writeStoreError(w, err)
		return
	}

	h.notifier.ApartmentDeleted(memberIDs, apartment.Name)

	w.WriteHeader(http.StatusNoContent)
}

// Leave removes the caller from their apartment and reconciles every task
// the caller was involved in.
func (h *ApartmentHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if ac.ApartmentID == nil {
		writeError(w, http.StatusBadRequest, "you are not a member of an apartment")
		return
	}

	result, err := h.apartmentStore.RemoveFromApartment(*ac.ApartmentID, ac.AccountID)
	if err != nil {
		h.logger.Error("leave apartment", "error", err, "account_id", ac.AccountID)
		writeStoreError(w, err)
		return
	}

	if !result.ApartmentDeleted {
		h.notifier.MemberLeft(result.RemainingIDs, ac.Username, h.adminUsername(*ac.ApartmentID, result))
		if result.NewAdminID != nil {
			h.notifier.AdminChanged(result.RemainingIDs, h.usernameOf(*result.NewAdminID))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember expels another member from the caller's apartment. Admin only;
// self-removal must go through Leave.
func (h *ApartmentHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if ac.ApartmentID == nil {
		writeError(w, http.StatusBadRequest, "you are not a member of an apartment")
		return
	}

	apartment, err := h.apartmentStore.GetByID(*ac.ApartmentID)
	if err != nil || apartment == nil {
		h.logger.Error("get apartment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if apartment.AdminID != ac.AccountID {
		writeError(w, http.StatusForbidden, "only the admin can remove members")
		return
	}
	if targetID == ac.AccountID {
		writeError(w, http.StatusBadRequest, "remove yourself by leaving instead")
		return
	}

	target, err := h.accountStore.GetByID(targetID)
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if target == nil || target.ApartmentID == nil || *target.ApartmentID != apartment.ID {
		writeError(w, http.StatusBadRequest, "account is not a member of this apartment")
		return
	}

	result, err := h.apartmentStore.RemoveFromApartment(apartment.ID, targetID)
	if err != nil {
		h.logger.Error("remove member", "error", err, "target_id", targetID)
		writeStoreError(w, err)
		return
	}

	recipients := append([]int64{targetID}, result.RemainingIDs...)
	h.notifier.MemberRemoved(recipients, target.Username, ac.Username)

	w.WriteHeader(http.StatusNoContent)
}

// adminUsername resolves the apartment's admin after a reconcile, preferring
// the successor recorded in the result.
func (h *ApartmentHandler) adminUsername(apartmentID int64, result *store.ReconcileResult) string {
	if result.NewAdminID != nil {
		return h.usernameOf(*result.NewAdminID)
	}
	apartment, err := h.apartmentStore.GetByID(apartmentID)
	if err != nil || apartment == nil {
		return ""
	}
	return h.usernameOf(apartment.AdminID)
}

func (h *ApartmentHandler) usernameOf(accountID int64) string {
	account, err := h.accountStore.GetByID(accountID)
	if err != nil || account == nil {
		return ""
	}
	return account.Username
}
