package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/message"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.CommandExecuted   = (*Extension)(nil)
	_ ext.QueryExecuted     = (*Extension)(nil)
	_ ext.EventDelivered    = (*Extension)(nil)
	_ ext.EventDeadLettered = (*Extension)(nil)
	_ ext.CacheRefreshed    = (*Extension)(nil)
	_ ext.Shutdown          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit record.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges mediator lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Dispatch hooks ──────────────────────────────────

// OnCommandExecuted implements ext.CommandExecuted.
func (e *Extension) OnCommandExecuted(ctx context.Context, cmd *message.Command, res mediator.Result, elapsed time.Duration) error {
	if res.Success {
		return e.record(ctx, ActionCommandExecuted, SeverityInfo, OutcomeSuccess,
			ResourceCommand, cmd.ID.String(), CategoryCommand, nil,
			"command_type", cmd.Type,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	return e.record(ctx, ActionCommandFailed, SeverityCritical, OutcomeFailure,
		ResourceCommand, cmd.ID.String(), CategoryCommand, res.Err,
		"command_type", cmd.Type,
		"error_code", string(res.ErrorCode),
	)
}

// OnQueryExecuted implements ext.QueryExecuted. Successful queries are
// not audited.
func (e *Extension) OnQueryExecuted(ctx context.Context, q *message.Query, res mediator.Result, _ time.Duration) error {
	if res.Success {
		return nil
	}
	return e.record(ctx, ActionQueryFailed, SeverityWarning, OutcomeFailure,
		ResourceQuery, q.ID.String(), CategoryQuery, res.Err,
		"query_type", q.Type,
		"cache_key", q.CacheKey,
		"error_code", string(res.ErrorCode),
	)
}

// OnEventDelivered implements ext.EventDelivered.
func (e *Extension) OnEventDelivered(ctx context.Context, evt *message.Event, subscriber string, elapsed time.Duration) error {
	return e.record(ctx, ActionEventDelivered, SeverityInfo, OutcomeSuccess,
		ResourceEvent, evt.ID.String(), CategoryEvent, nil,
		"event_type", evt.Type,
		"subscriber", subscriber,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnEventDeadLettered implements ext.EventDeadLettered.
func (e *Extension) OnEventDeadLettered(ctx context.Context, evt *message.Event, subscriber string, deliveryErr error) error {
	return e.record(ctx, ActionEventDeadLettered, SeverityCritical, OutcomeFailure,
		ResourceEvent, evt.ID.String(), CategoryEvent, deliveryErr,
		"event_type", evt.Type,
		"subscriber", subscriber,
	)
}

// ── Cache hooks ─────────────────────────────────────

// OnCacheRefreshed implements ext.CacheRefreshed. Only failed attempts
// are audited.
func (e *Extension) OnCacheRefreshed(ctx context.Context, key string, attempt int, refreshErr error) error {
	if refreshErr == nil {
		return nil
	}
	return e.record(ctx, ActionCacheRefreshFailed, SeverityWarning, OutcomeFailure,
		ResourceCacheKey, key, CategoryCache, refreshErr,
		"attempt", attempt,
	)
}

// ── Lifecycle hooks ─────────────────────────────────

// OnShutdown implements ext.Shutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionShutdown, SeverityInfo, OutcomeSuccess,
		ResourceMediator, "", CategoryLifecycle, nil,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = reason
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
