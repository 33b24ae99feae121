// Package audithook is a mediator extension that turns lifecycle events
// into structured audit records.
//
// Executed commands, failed queries, event deliveries, dead letters,
// failed background refreshes and shutdown each emit an [AuditEvent]
// through the [Recorder] interface. Severity follows the outcome: info for
// normal operations, warning for failed refreshes and queries, critical
// for failed commands and dead letters.
//
// # Usage
//
//	recorder := audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return auditLog.Write(ctx, evt)
//	})
//	eng, _ := engine.Build(cfg, engine.WithExtension(audithook.New(recorder)))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionCommandFailed,
//	        audithook.ActionEventDeadLettered,
//	    ),
//	)
package audithook
