package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/database"
	"gorm.io/datatypes"
)

// ClientInfo describes where a request came from.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// RecordLogin records a successful dashboard sign-in.
func (e *Engine) RecordLogin(ctx context.Context, user *database.User, client ClientInfo) {
	e.recordUserActivity(ctx, user, database.ActivityLogin, true, "", client)
	e.recordEvent(ctx, "user_login", database.SeverityInfo, "auth",
		fmt.Sprintf("User %s logged in", user.Username),
		datatypes.JSONMap{"user_id": user.ID, "ip_address": client.IPAddress})
}

// RecordFailedLogin records a rejected sign-in. user is nil when the login matched no account.
func (e *Engine) RecordFailedLogin(ctx context.Context, login string, user *database.User, reason string, client ClientInfo) {
	if user != nil {
		e.recordUserActivity(ctx, user, database.ActivityFailedLogin, false, reason, client)
	}
	e.recordEvent(ctx, "failed_login", database.SeverityWarning, "auth",
		fmt.Sprintf("Failed login for %s", login),
		datatypes.JSONMap{"login": login, "reason": reason, "ip_address": client.IPAddress})
}

// RecordLogout records a sign-out.
func (e *Engine) RecordLogout(ctx context.Context, user *database.User, client ClientInfo) {
	e.recordUserActivity(ctx, user, database.ActivityLogout, true, "", client)
	e.recordEvent(ctx, "user_logout", database.SeverityInfo, "auth",
		fmt.Sprintf("User %s logged out", user.Username),
		datatypes.JSONMap{"user_id": user.ID})
}

// RecordPasswordChange records a password change or reset.
func (e *Engine) RecordPasswordChange(ctx context.Context, user *database.User, client ClientInfo) {
	e.recordUserActivity(ctx, user, database.ActivityPasswordChange, true, "", client)
	e.recordEvent(ctx, "password_change", database.SeverityInfo, "auth",
		fmt.Sprintf("User %s changed the password", user.Username),
		datatypes.JSONMap{"user_id": user.ID})
}

// recordUserActivity writes an activity row for members of a company.
func (e *Engine) recordUserActivity(ctx context.Context, user *database.User, typ database.ActivityType, success bool, reason string, client ClientInfo) {
	if user == nil || user.CompanyID == nil {
		return
	}
	userID := user.ID
	activity := &database.UserActivity{
		CompanyID:     *user.CompanyID,
		UserID:        &userID,
		ActivityType:  typ,
		Timestamp:     e.now().UTC(),
		IPAddress:     client.IPAddress,
		UserAgent:     client.UserAgent,
		Success:       success,
		FailureReason: reason,
		Principal:     user.Email,
		Metadata:      datatypes.JSONMap{"source": "dashboard"},
	}
	if _, err := e.db.RecordActivity(ctx, activity); err != nil {
		log.Error("failed to record user activity", "user", user.ID, "type", typ, "error", err)
	}
}
