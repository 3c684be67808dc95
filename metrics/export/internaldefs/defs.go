package internaldefs

import (
	"github.com/ironhall/gymauth"
)

// CounterDef binds a counter [gymauth.MetricID] to its exported name.
type CounterDef struct {
	ID   gymauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram [gymauth.MetricID] to its exported name.
type HistogramDef struct {
	ID   gymauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: gymauth.MetricLoginSuccess, Name: "gymauth_login_success_total", Help: "Successful logins."},
	{ID: gymauth.MetricLoginFailure, Name: "gymauth_login_failure_total", Help: "Rejected logins."},
	{ID: gymauth.MetricLogout, Name: "gymauth_logout_total", Help: "Logouts."},
	{ID: gymauth.MetricRestoreSuccess, Name: "gymauth_restore_success_total", Help: "Persisted sessions restored at startup."},
	{ID: gymauth.MetricRestoreWiped, Name: "gymauth_restore_wiped_total", Help: "Persisted sessions discarded as invalid."},
	{ID: gymauth.MetricRoleFallback, Name: "gymauth_role_fallback_total", Help: "Role catalog loads that fell back to the built-in roles."},
	{ID: gymauth.MetricPermissionFetchSuccess, Name: "gymauth_permission_fetch_success_total", Help: "Successful permission fetches."},
	{ID: gymauth.MetricPermissionFetchFailure, Name: "gymauth_permission_fetch_failure_total", Help: "Failed permission fetches."},
	{ID: gymauth.MetricPermissionFetchDiscarded, Name: "gymauth_permission_fetch_discarded_total", Help: "Permission responses discarded as superseded."},
	{ID: gymauth.MetricRefreshSuccess, Name: "gymauth_refresh_success_total", Help: "Successful permission refreshes."},
	{ID: gymauth.MetricRefreshFailure, Name: "gymauth_refresh_failure_total", Help: "Failed permission refreshes."},
	{ID: gymauth.MetricPermissionsChanged, Name: "gymauth_permissions_changed_total", Help: "Permission snapshots applied."},
	{ID: gymauth.MetricPollRun, Name: "gymauth_poll_run_total", Help: "Permission polls run."},
	{ID: gymauth.MetricPollDrift, Name: "gymauth_poll_drift_total", Help: "Polls that detected server-side permission changes."},
	{ID: gymauth.MetricPollError, Name: "gymauth_poll_error_total", Help: "Polls that failed."},
	{ID: gymauth.MetricListenerPanic, Name: "gymauth_listener_panic_total", Help: "Recovered panics in change listeners."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: gymauth.MetricFetchLatency, Name: "gymauth_permission_fetch_latency_seconds", Help: "Permission fetch latency."},
}

// AuditDroppedName is the counter exporting [gymauth.Engine.AuditDropped].
const AuditDroppedName = "gymauth_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramBounds are the bucket upper bounds as exposition labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket upper bounds in seconds.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without label support.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals exporters publish.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
