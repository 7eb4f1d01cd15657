// Package notify schedules deadline-reminder notifications and delivers
// them to users' registered devices. It owns the notification state
// machine: scheduled records become delivered or, after bounded retries,
// terminally failed, and endpoints the delivery provider reports as
// permanently invalid are deactivated.
package notify
