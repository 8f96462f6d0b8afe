// Package notify emits best-effort real-time events after state changes
// commit. Nothing here can fail an operation: delivery is fire-and-forget
// through the WebSocket hub.
package notify

import (
	"log/slog"

	"github.com/dukerupert/flatmate/internal/websocket"
)

type Notifier struct {
	hub    *websocket.Hub
	logger *slog.Logger
}

func New(hub *websocket.Hub, logger *slog.Logger) *Notifier {
	return &Notifier{hub: hub, logger: logger}
}

func (n *Notifier) send(accountIDs []int64, msg websocket.Message) {
	if n == nil || n.hub == nil {
		return
	}
	if len(accountIDs) == 0 {
		return
	}
	n.hub.Notify(accountIDs, msg)
	n.logger.Debug("notification sent", "type", msg.Type, "recipients", len(accountIDs))
}

func (n *Notifier) TaskCreated(accountIDs []int64, taskName, creator string, assignees []string) {
	n.send(accountIDs, websocket.NewMessage("task", "created", map[string]any{
		"task":      taskName,
		"creator":   creator,
		"assignees": assignees,
	}))
}

func (n *Notifier) TaskUpdated(accountIDs []int64, taskName, updater string) {
	n.send(accountIDs, websocket.NewMessage("task", "updated", map[string]any{
		"task":    taskName,
		"updater": updater,
	}))
}

func (n *Notifier) TaskDeleted(accountIDs []int64, taskName, remover string) {
	n.send(accountIDs, websocket.NewMessage("task", "deleted", map[string]any{
		"task":    taskName,
		"remover": remover,
	}))
}

// TaskAssigned announces a conversion: assignees are listed in rotation order.
func (n *Notifier) TaskAssigned(accountIDs []int64, taskName string, assignees []string) {
	n.send(accountIDs, websocket.NewMessage("task", "assigned", map[string]any{
		"task":      taskName,
		"assignees": assignees,
	}))
}

func (n *Notifier) TaskReordered(accountIDs []int64, taskName, reorderer string) {
	n.send(accountIDs, websocket.NewMessage("task", "reordered", map[string]any{
		"task":      taskName,
		"reorderer": reorderer,
	}))
}

func (n *Notifier) TaskReassigned(accountIDs []int64, taskName, assigner string) {
	n.send(accountIDs, websocket.NewMessage("task", "reassigned", map[string]any{
		"task":     taskName,
		"assigner": assigner,
	}))
}

func (n *Notifier) RequestStateChanged(accountIDs []int64, taskName, assignee, state string) {
	n.send(accountIDs, websocket.NewMessage("task_request", "state_changed", map[string]any{
		"task":     taskName,
		"assignee": assignee,
		"state":    state,
	}))
}

func (n *Notifier) InvitationCreated(inviteeID int64, invitor, invitee, apartment string) {
	n.send([]int64{inviteeID}, websocket.NewMessage("invitation", "created", map[string]any{
		"invitor":   invitor,
		"invitee":   invitee,
		"apartment": apartment,
	}))
}

func (n *Notifier) InvitationAccepted(accountIDs []int64, invitor, invitee, apartment string) {
	n.send(accountIDs, websocket.NewMessage("invitation", "accepted", map[string]any{
		"invitor":   invitor,
		"invitee":   invitee,
		"apartment": apartment,
	}))
}

func (n *Notifier) InvitationRejected(invitorID int64, invitor, invitee, apartment string) {
	n.send([]int64{invitorID}, websocket.NewMessage("invitation", "rejected", map[string]any{
		"invitor":   invitor,
		"invitee":   invitee,
		"apartment": apartment,
	}))
}

func (n *Notifier) InvitationCanceled(inviteeID int64, invitor, invitee, apartment string) {
	n.send([]int64{inviteeID}, websocket.NewMessage("invitation", "canceled", map[string]any{
		"invitor":   invitor,
		"invitee":   invitee,
		"apartment": apartment,
	}))
}

// MemberLeft tells the remaining members who left and who the admin now is.
func (n *Notifier) MemberLeft(accountIDs []int64, leaver, admin string) {
	n.send(accountIDs, websocket.NewMessage("apartment", "member_left", map[string]any{
		"leaver": leaver,
		"admin":  admin,
	}))
}

// MemberRemoved tells the removed member and the remaining members.
func (n *Notifier) MemberRemoved(accountIDs []int64, removed, admin string) {
	n.send(accountIDs, websocket.NewMessage("apartment", "member_removed", map[string]any{
		"removed": removed,
		"admin":   admin,
	}))
}

func (n *Notifier) AdminChanged(accountIDs []int64, admin string) {
	n.send(accountIDs, websocket.NewMessage("apartment", "admin_changed", map[string]any{
		"admin": admin,
	}))
}

func (n *Notifier) ApartmentDeleted(accountIDs []int64, apartment string) {
	n.send(accountIDs, websocket.NewMessage("apartment", "deleted", map[string]any{
		"apartment": apartment,
	}))
}
