package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// outcome and becomes the Action field of the audit event.
const (
	ActionCommandExecuted    = "command.executed"
	ActionCommandFailed      = "command.failed"
	ActionQueryFailed        = "query.failed"
	ActionEventDelivered     = "event.delivered"
	ActionEventDeadLettered  = "event.dead_lettered"
	ActionCacheRefreshFailed = "cache.refresh_failed"
	ActionShutdown           = "mediator.shutdown"
)

// Audit event categories group related actions.
const (
	CategoryCommand   = "mediator.command"
	CategoryQuery     = "mediator.query"
	CategoryEvent     = "mediator.event"
	CategoryCache     = "mediator.cache"
	CategoryLifecycle = "mediator.lifecycle"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceCommand  = "command"
	ResourceQuery    = "query"
	ResourceEvent    = "event"
	ResourceCacheKey = "cache_key"
	ResourceMediator = "mediator"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionCommandExecuted,
		ActionCommandFailed,
		ActionQueryFailed,
		ActionEventDelivered,
		ActionEventDeadLettered,
		ActionCacheRefreshFailed,
		ActionShutdown,
	}
}
