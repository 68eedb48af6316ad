// Package indexer fills the knowledge base from the Notion workspace and
// local documents.
//
// A sync lists the configured pages, database rows and files, fetches
// their text concurrently and then ingests each document in listing order:
// the text is chunked, the chunks are embedded in batches and every chunk is
// stored with its vector.
//
//	idx := indexer.New(store, emb, chk,
//	    indexer.WithSource(notionClient),
//	    indexer.WithConfig(indexer.Config{PageIDs: pages, DatabaseIDs: dbs}))
//
//	stats, err := idx.Sync(ctx, indexer.SyncRequest{Force: true})
//
// Without Force a knowledge base that already holds records is left alone.
// Only one sync runs at a time per Indexer; a second caller gets
// ErrSyncInProgress. Failures to fetch or ingest a single document are
// counted in Statistics and do not stop the run.
package indexer
