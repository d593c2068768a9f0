// Package notifier delivers reminder messages to users.
//
// Chat messages go through a transport.Adapter (Telegram in production)
// behind a shared rate limiter and a duplicate-suppression window. The window
// can be persisted so a restart that re-fires a reminder does not message the
// user twice.
//
// Push delivery is delegated to a Pusher and is best-effort: failures are
// logged, never returned.
//
// For operator visibility the service keeps a small in-memory history of
// recently sent messages.
package notifier
