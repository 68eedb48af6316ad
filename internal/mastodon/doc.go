// Package mastodon publishes posts and replies for the BiteRate account and
// reads its notifications. Dry-run mode logs what would be sent without
// touching the instance.
package mastodon
