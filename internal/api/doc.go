// Package api serves the agent over HTTP.
//
// Routes:
//
//	GET  /         service description
//	GET  /health   liveness
//	POST /run      run the posting workflow, body {"dry_run": bool}
//	GET  /posts    recent posts, ?limit=&status=
//	GET  /reviews  recent reviews, ?limit=
//	GET  /stats    post, review and reply counts
//
// When a token is configured every route except /health requires
// "Authorization: Bearer <token>".
package api
