// Package storage is the SQLite persistence layer: notes, user profiles,
// push device tokens, user actions and notifier dedup state.
package storage
