// Package scheduler triggers work at the right time and hands it to the
// task engine.
//
// It holds two kinds of entries:
//   - reminder jobs: one-shot timers keyed by (note, kind), at most one per
//     key, replaced on every re-registration (the reminder job store)
//   - named cron/interval schedules for housekeeping such as the
//     reconciliation sweep
//
// Execution is the engine's business; the scheduler only decides when.
package scheduler
