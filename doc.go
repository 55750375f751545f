// Package jobtracker tracks job applications for authenticated users and
// aggregates them into summary statistics, a daily submission timeline, and
// follow-up reminders.
//
// Tenancy:
//   - Every repository and analytics call takes the acting user id as an
//     explicit argument. Records owned by another user are reported as not
//     found so their existence never leaks across accounts.
//
// Sessions:
//   - TokenService issues HS256 bearer tokens carrying the user id as the
//     subject claim. Tokens are stateless; logout is a client side action and
//     a token stays valid until its embedded expiry elapses.
//
// Statuses:
//   - ApplicationStatus is a flat enumeration. Any status may move to any
//     other status; only values outside the enumeration are rejected.
//
// Activity sinks:
//   - ActivitySink receives audit events for logins, registrations and
//     application changes. Sinks run best effort (errors are logged).
package jobtracker
