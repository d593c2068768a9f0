package eventbus

// Event types published by this module.
const (
	TaskStarted  = "task.started"
	TaskFinished = "task.finished"
	TaskFailed   = "task.failed"
	TaskDropped  = "task.dropped"
	TaskSkipped  = "task.skipped"

	ReminderScheduled = "reminder.scheduled"
	ReminderRemoved   = "reminder.removed"
	ReminderFired     = "reminder.fired"
	ReminderAdvanced  = "reminder.advanced"

	NotifySent    = "notifier.sent"
	NotifyDeduped = "notifier.deduped"
	NotifyFailed  = "notifier.failed"

	ConfigReloaded = "config.reloaded"
)
