// Package interfaces documents the seams between the packages of the
// libris module and holds compile-time checks for them.
//
// # Interface Categories
//
// ## Core (client side)
//
//   - remote.Service: everything the core needs from the data service
//     (internal/remote/service.go). Implemented by remote/rest over HTTP and
//     by remote/local in process.
//   - authflow.Service: the passcode and credential subset used by the flow
//     controller (internal/authflow/controller.go)
//   - authflow.Confirmer: told when an email was verified; the session store
//     implements it
//   - rest.SessionStore: persists the session between CLI runs
//     (internal/remote/rest/client.go); tokenstore implements it
//
// ## Data service (server side)
//
//   - backend.Sessions: bearer token issue/resolve/revoke (internal/backend/backend.go)
//   - backend.Dispatcher: hands passcodes to delivery. delivery.Direct sends
//     inline, tasks.PasscodeDispatcher queues on backlite.
//   - backend.Auditor: audit trail (internal/audit/service.go)
//   - delivery.Sender: the delivery channel itself (internal/delivery/delivery.go)
//   - identity.TokenResolver, identity.ProfileLookup: used by the gin
//     middleware to build the request principal
//
// ## Maintenance
//
//   - tasks.PasscodeCleaner, tasks.AuditEventCleaner: implemented by the
//     passcodes and audit repositories
//
// # Adding a New Delivery Channel
//
//  1. Implement delivery.Sender:
//
//     type SMTPSender struct { ... }
//
//     func (s *SMTPSender) Send(ctx context.Context, msg delivery.Message) error
//
//     var _ delivery.Sender = (*SMTPSender)(nil)
//
//  2. Pass it to tasks.NewDeliverPasscodeQueue (and delivery.Direct) in
//     entrypoint.Open.
//
// # Adding a New Remote Client
//
// Implement remote.Service and classify failures with remote.Classify so
// the core sees transport failures as remote.ErrTransport. Add a check to
// checks.go:
//
//	var _ remote.Service = (*MyClient)(nil)
package interfaces
