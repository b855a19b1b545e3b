// Package notifications implements the real-time notification delivery
// subsystem: durable per-recipient notification records, a connection
// registry + delivery hub for live WebSocket push, the REST surface clients
// poll for history, and the course fan-out helpers event producers call.
//
// # Architecture
//
// The package follows a layered design:
//
//   - Storage: persistence and read-state lifecycle (Postgres or in-memory)
//   - Hub: recipient -> live connection registry and best-effort push
//   - Service: orchestrates storage and hub (store first, push best-effort)
//   - Transport: WebSocket endpoint and chi REST handlers
//
// Delivery guarantees are deliberately split: push over the socket is
// at-most-once (a dropped frame is never retried), while persistence gives
// at-least-once visibility on the next history poll. The boolean returned by
// Hub.SendToUser only means the recipient had at least one live connection
// at the time of the call.
//
// # Basic usage
//
//	hub := notifications.NewHub(notifications.WithHubLogger(log))
//	svc := notifications.NewService(storage,
//	    notifications.WithPusher(hub),
//	    notifications.WithServiceLogger(log),
//	)
//
//	// An event producer persists first, push is best-effort:
//	notif, err := svc.Create(ctx, notifications.CreateParams{
//	    UserID:  studentID,
//	    Type:    notifications.TypeAssignment,
//	    Title:   "New Assignment",
//	    Message: "Problem Set 3 was posted",
//	})
//
// Mount the HTTP surface with Router:
//
//	r.Mount("/", notifications.Router(svc, hub, log))
package notifications
