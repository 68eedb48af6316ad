// Package storage provides SQLite-based persistence for the knowledge base
// and the agent's audit trail.
//
// The knowledge base keeps three views of every record in lock step:
//   - embeddings_meta: the record itself (source, content, JSON metadata)
//   - embeddings_fts: an FTS5 external-content mirror of content, kept in
//     sync by insert and delete triggers, queried with bm25()
//   - vec_embeddings: a 384-dimensional float32 vector keyed by the same id
//
// # Build Modes
//
// With the sqlite_vec build tag the store uses mattn/go-sqlite3 and the
// sqlite-vec vec0 virtual table for KNN search. Without it (or with purego)
// it uses modernc.org/sqlite and computes cosine distance in Go over a plain
// blob table. Both report distances in [0, 2].
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("data/biterate.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	id, err := store.Save(ctx, &types.Record{
//	    SourceType: types.SourceNotionPage,
//	    SourceID:   pageID,
//	    Content:    chunk.Content,
//	    Metadata:   chunk.Metadata,
//	}, vector)
//
//	scores, err := store.KeywordSearch(ctx, "tiramisu", 100)
//	distances, err := store.SemanticSearch(ctx, queryVector, 100)
//
// Search failures of one index are reported as ErrIndexUnavailable together
// with an empty map so callers can fall back to the other index.
//
// # Audit Trail
//
// Reviews, generated posts, approval decisions, feedback and answered
// notifications live in ordinary tables added by schema version 1.1.0.
// Version 1.2.0 adds page_states, the last edit time seen for each watched
// workspace page.
//
// # Concurrency
//
// The pool holds a single connection and every operation scopes its own
// *sql.Conn, so calls serialize inside one process. No busy timeout is
// configured; a second process writing the same file fails fast.
package storage
