// Package auth is the authentication core of the portal: account
// registration with email verification, password login, JWT sessions and
// role based route guards.
//
// Accounts and verification:
//   - RegisterAccountHandler creates an unverified account and a single use
//     verification token in one transaction. If the Notifier can not deliver
//     the token the whole registration is rolled back.
//   - VerifyAccountHandler consumes a token. Unknown tokens return
//     ErrInvalidToken, expired ones are deleted and return ErrExpiredToken.
//   - ResendVerificationHandler issues a fresh token for unverified accounts
//     and is silent for everything else.
//
// Sessions:
//   - Auther.Login checks credentials through UserProvider and mints a JWT
//     carrying a snapshot of the account role. The snapshot is not refreshed
//     when the stored role changes; use RefreshSession or UpdateSession.
//   - LoginWithIdentity is the entry point for federated logins, the role is
//     always read from the store.
//
// Authorization:
//   - Gate decides whether a session may reach a route. RouteAuthenticator
//     wraps it as fiber middleware: browsers are redirected to the login page,
//     JSON clients get a structured error, and the handler never runs.
//
// Activity sinks:
//   - ActivitySink receives registration, verification and login events.
//     Sinks run best-effort, failures are logged and never fail the request.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before JWTs are signed. Decorators may add
//     metadata while protected claims (sub, role, iss, aud, exp) stay fixed.
package auth
