// Package accounts provides self service account management: signup with
// email activation, password reset, profile updates, and administrative
// status changes, backed by Bun repositories.
//
// Account lifecycle:
//   - Accounts carry a Status persisted as an integer. StatusNotActive (1) is
//     assigned on signup, StatusActive (10) after activation, and
//     StatusDeleted (0) when an administrator removes access. StatusName falls
//     back to "Active" for values outside StatusList.
//   - Activation and reset tokens have the form "<random>_<unix timestamp>".
//     Reset tokens expire after Options.PasswordResetTokenExpire seconds and
//     are cleared once used.
//
// Commands:
//   - Each operation is a handler with an Execute(ctx, message) method, for
//     example SignupHandler or ChangeStatusHandler. Handlers validate input
//     first and return FieldErrors for user facing problems. Uniqueness of
//     username and email is checked before writing and enforced again by the
//     storage layer.
//
// Activity sinks:
//   - ActivitySink receives an ActivityEvent for signups, activations, resets,
//     updates, and status changes. Sinks run best-effort (errors are logged) so
//     they can forward to a queue without blocking the request.
//
// HTTP:
//   - RegisterAccountRoutes mounts AccountController on a go-router Router and
//     renders the embedded django views returned by GetViewsFS.
package accounts
