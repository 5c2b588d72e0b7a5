// Package daemon provides the main orchestration for foliod.
// It coordinates the fade controller, audio manager, HTTP server,
// submission outbox, desktop notifier, and configuration hot-reload.
package daemon
