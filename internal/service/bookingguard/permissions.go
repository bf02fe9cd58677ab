package bookingguard

import (
	"context"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/domain/errors"
)

// rolePermissions maps a role to the actions it may perform. The admin
// wildcard entry permits everything; every other role needs an exact match.
var rolePermissions = map[string][]string{
	"admin":   {"*"},
	"manager": {"booking:create", "booking:update", "booking:cancel", "property:update_price", "upload:create"},
	"guest":   {"booking:create", "booking:cancel", "upload:create"},
	"viewer":  {"booking:view"},
}

// CheckPermission verifies that role may perform action. Denials are
// audited; the caller-facing error stays generic.
func (e *Engine) CheckPermission(ctx context.Context, role, action, userID string) error {
	if allowed(role, action) {
		return nil
	}

	e.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPermissionDenied, audit.SeverityMedium,
		map[string]interface{}{"role": role, "action": action},
	).WithActor(userID))

	return errors.NewForbiddenError("You do not have permission to perform this action")
}

func allowed(role, action string) bool {
	actions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}
