// Package agent runs the posting workflow.
//
// One run reads company pages and restaurant reviews from the workspace,
// mirrors the reviews into the audit store, retrieves related passages from
// the knowledge base, drafts a post, optionally attaches an image and asks a
// reviewer, then publishes (or dry-runs) the post and records its final
// state. RunScheduled repeats the run on a cron schedule.
package agent
