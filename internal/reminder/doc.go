// Package reminder holds the reminder domain: notes and profiles as the
// engine sees them, due-date resolution from extracted time components,
// RRULE recurrence, and the storage/delivery interfaces the engine consumes.
//
// Everything here is pure (no timers, no I/O) so it can be tested with fixed
// instants.
package reminder
