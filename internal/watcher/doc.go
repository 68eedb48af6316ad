// Package watcher polls workspace pages for edits.
//
// The first sighting of a page only records its edit time. A later change
// re-indexes that page alone and, when auto posting is on, runs the posting
// workflow once per poll that saw changes.
package watcher
