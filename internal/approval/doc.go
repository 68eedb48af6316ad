// Package approval puts drafts in front of a human before they are published.
//
// A request moves through a small state machine:
//
//	Sent --approve--> Approved
//	Sent --reject---> AwaitingReason --text--> Rejected(reason)
//	Sent, AwaitingReason --timer--> TimedOut
//
// Gate.Request waits in a single select over the channel's events, the
// timeout and the caller's context. Buttons carry a per-request token so
// presses on older messages are ignored.
//
// Telegram implements Channel with long polling and an inline keyboard.
package approval
