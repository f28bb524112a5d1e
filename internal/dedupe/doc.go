// Package dedupe suppresses duplicate trigger deliveries.
//
// The trigger subscription is at-least-once: a reconnect or an upstream
// retry can deliver the same email event twice. The listener keys this
// cache by the trigger's message id, checks before processing, and marks
// only after the turn completes so a failed turn can be retried by a
// redelivery.
package dedupe
