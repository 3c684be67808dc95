package gymauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ironhall/gymauth/authsession"
	"github.com/ironhall/gymauth/internal/audit"
	"github.com/ironhall/gymauth/permcache"
	"github.com/ironhall/gymauth/permsync"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLogout             = "logout"
	auditEventSessionRestored    = "session_restored"
	auditEventSessionWiped       = "session_wiped"
	auditEventRolesFallback      = "roles_fallback"
	auditEventPermissionsChanged = "permissions_changed"
	auditEventPermissionsStale   = "permissions_stale"
)

// AuditErrorCode is the stable error label recorded on audit events.
type AuditErrorCode string

const (
	auditErrRoleDirectoryUnavailable AuditErrorCode = "role_directory_unavailable"
	auditErrRoleNotFound             AuditErrorCode = "role_not_found"
	auditErrAuthorizationFetch       AuditErrorCode = "authorization_fetch"
	auditErrInvalidSessionData       AuditErrorCode = "invalid_session_data"
	auditErrStoreUnavailable         AuditErrorCode = "store_unavailable"
	auditErrUnrecognizedResponse     AuditErrorCode = "unrecognized_response"
	auditErrBackendStatus            AuditErrorCode = "backend_status"
	auditErrInternal                 AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	roleID int64,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		UserID:    idString(userID),
		RoleID:    idString(roleID),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var lerr *authsession.LoginError
	if errors.As(err, &lerr) {
		return AuditErrorCode(lerr.Reason.String())
	}

	switch {
	case errors.Is(err, ErrRoleDirectoryUnavailable):
		return auditErrRoleDirectoryUnavailable
	case errors.Is(err, ErrRoleNotFound):
		return auditErrRoleNotFound
	case errors.Is(err, ErrAuthorizationFetch):
		return auditErrAuthorizationFetch
	case errors.Is(err, ErrInvalidSessionData):
		return auditErrInvalidSessionData
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrUnrecognizedResponse):
		return auditErrUnrecognizedResponse
	case errors.Is(err, ErrBackendStatus):
		return auditErrBackendStatus
	default:
		return auditErrInternal
	}
}

// onSessionEvent feeds session lifecycle events into metrics. Wipes are also audited
// here since their cause is not surfaced to the caller.
func (e *Engine) onSessionEvent(ev authsession.Event) {
	switch ev.Kind {
	case authsession.EventLoginSucceeded:
		e.metricInc(MetricLoginSuccess)
	case authsession.EventLoginFailed:
		e.metricInc(MetricLoginFailure)
	case authsession.EventLogout:
		e.metricInc(MetricLogout)
	case authsession.EventRestored:
		e.metricInc(MetricRestoreSuccess)
	case authsession.EventWiped:
		e.metricInc(MetricRestoreWiped)
		e.emitAudit(e.ctx, auditEventSessionWiped, false, ev.UserID, ev.RoleID, ev.Err, nil)
	}
}

// onRolesLoad records fallback substitutions of the role catalog.
func (e *Engine) onRolesLoad(_ time.Duration, warning error) {
	if warning == nil {
		return
	}
	e.metricInc(MetricRoleFallback)
	e.emitAudit(e.ctx, auditEventRolesFallback, false, 0, 0, warning, nil)
}

// onFetch feeds completed permission fetches into metrics and audits stale snapshots.
func (e *Engine) onFetch(ev permcache.FetchEvent) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricFetchLatency, ev.Elapsed)
	}

	switch {
	case ev.Discarded:
		e.metricInc(MetricPermissionFetchDiscarded)
	case ev.Err != nil:
		e.metricInc(MetricPermissionFetchFailure)
	default:
		e.metricInc(MetricPermissionFetchSuccess)
	}

	if ev.Kind == permcache.FetchRefresh && !ev.Discarded {
		if ev.Err != nil {
			e.metricInc(MetricRefreshFailure)
		} else {
			e.metricInc(MetricRefreshSuccess)
		}
	}

	if ev.Stale {
		e.emitAudit(e.ctx, auditEventPermissionsStale, false, 0, ev.RoleID, ev.Err, nil)
	}
}

// onPermissionsChanged audits every applied snapshot.
func (e *Engine) onPermissionsChanged(snap *permcache.Snapshot) {
	e.metricInc(MetricPermissionsChanged)
	if snap == nil {
		return
	}
	e.emitAudit(e.ctx, auditEventPermissionsChanged, true, 0, snap.RoleID, nil, func() map[string]string {
		return map[string]string{
			"modules": strconv.Itoa(snap.Modules.Len()),
			"grants":  strconv.Itoa(snap.Grants.Len()),
		}
	})
}

func (e *Engine) onPoll(res permsync.Result, err error) {
	e.metricInc(MetricPollRun)
	switch {
	case err != nil:
		e.metricInc(MetricPollError)
	case res == permsync.Refreshed:
		e.metricInc(MetricPollDrift)
	}
}

func (e *Engine) onListenerPanic(any) {
	e.metricInc(MetricListenerPanic)
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}
