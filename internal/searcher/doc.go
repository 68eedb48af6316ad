// Package searcher ranks knowledge base records for a query by fusing
// keyword and semantic search.
//
// Both searches run against the same store, each capped at
// Options.CandidateLimit (100). Their raw scores live on different scales,
// so each side is min-max normalized onto [0, 1] first:
//
//   - keyword: bm25, where more negative is better; the best score maps to 1.0
//   - semantic: cosine distance d in [0, 2], converted to 1 - d/2
//
// When every score on a side is equal, each normalizes to 1.0. The union of
// both candidate sets is ranked by
//
//	final = KeywordWeight*keyword + SemanticWeight*semantic
//
// with 0.0 for a side that did not return the candidate. Ties keep ascending
// id order. A search mode that fails is logged and contributes nothing, so
// the other mode still answers.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb)
//
//	context, results, err := s.RetrieveContext(ctx, "italian dessert", 5)
//
// RetrieveContext renders results as
//
//	[1. notion_page] (score: 0.87)
//	<content>
//
// blocks separated by a blank line, or NoContext when nothing matched.
//
// Search adds modes on top of Hybrid: keyword-only and semantic-only are
// fusion with weights 1/0 and 0/1.
package searcher
