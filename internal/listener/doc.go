// Package listener answers comments on the account's posts.
//
// Each poll reads the latest notifications, keeps mentions and replies that
// have not been answered yet, and drafts a reply grounded in the knowledge
// base. Replies go through the approval gate when one is configured and are
// posted at a limited rate. Answered notifications are recorded so a
// restart does not reply twice.
package listener
