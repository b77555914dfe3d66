// Package rbac provides role-based access control primitives (users,
// roles, permissions, grant and assignment edges) together with the
// session machinery that fronts them: JWT token pairs with refresh
// rotation, one-time verification codes, and go-router middleware.
//
// Access model:
//   - Permissions are (action, module) tuples; roles collect them
//     through role_permissions edges whose CanDoTheAction flag carries
//     the actual grant. Users collect roles through role_users edges.
//   - AccessGate flattens a user's roles into a PermissionSet and
//     answers Authorize calls; the Scope column supports grants that
//     only apply to records associated with the caller.
//
// User lifecycle:
//   - Users carry a UserStatus persisted via Bun. Accounts start
//     unverified (or invited when created on the user's behalf), become
//     active on email verification, and can be deactivated by an admin.
//   - UserStateMachine centralizes the transition graph, hooks, and
//     persistence for those moves.
//
// Sessions:
//   - Authenticator issues access/refresh token pairs backed by
//     auth_tokens rows; refreshing rotates the pair and logout deletes
//     it. VerificationService issues throttled one-time codes for email
//     verification and password reset flows.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the
//     authenticator and the state machine to describe lifecycle, login,
//     and grant events. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking requests.
package rbac
