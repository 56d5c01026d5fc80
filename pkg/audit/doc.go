// Package audit records the append-only trail behind the security core:
// emergency-access grant transitions, MFA state changes, and protected-record
// reads performed under a grant.
//
// Events are immutable after insertion and carry a SHA-256 checksum over
// their identifying fields so later tampering is detectable. The Logger
// returns storage errors to the caller rather than dropping entries; the
// services in this module treat a failed audit write as a failure of the
// audited operation itself (audit-before-effect).
//
// Storage is pluggable: MemoryStorage serves tests and single-process use,
// PostgresStorage persists to an append-only table via pgx. A Reader exposes
// criteria-based queries (by grant, actor, patient, action, time range),
// always ordered oldest-first to drive compliance queues.
package audit
