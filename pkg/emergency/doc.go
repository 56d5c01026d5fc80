// Package emergency implements break-the-glass access to protected patient
// records: narrowly granted, time-bounded, audited, and subject to mandatory
// after-the-fact review.
//
// A grant authorizes one user to bypass ordinary role checks for one patient
// for a fixed duration. It never bypasses encryption — the privacy package
// continues to gate ciphertext regardless of authorization path. Requests
// are validated against an allow-list of clinical roles, the external user
// and patient directories, the declared reason, and a minimum justification
// length; each failure is surfaced with its specific cause, since these are
// correctable clinician mistakes, not security oracles.
//
// At most one active grant exists per (user, patient) pair: a request for a
// pair with an active grant returns that grant instead of creating another,
// and GrantRepository.Create is atomic so two concurrent first requests
// resolve to a single grant. Grants expire by wall-clock comparison at
// verification time — no timers — and expired grants simply stop
// authorizing; they are retained for compliance until reviewed and past
// their retention window (longer for unreviewed grants, since unresolved
// compliance items must not quietly age out).
//
// Every state transition writes its audit entry before the operation reports
// success. If the audit write fails, the transition is rolled back and the
// operation fails: audit-before-effect, not best-effort-after.
//
// Two repositories are provided: MemoryGrantRepository for tests and
// single-process use, and RedisGrantRepository for multi-process deployments
// (pair uniqueness via a watched index key).
package emergency
