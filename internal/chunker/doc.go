// Package chunker divides documents into retrieval-sized passages.
//
// Four interchangeable strategies are selected by name:
//
//   - fixed_chars: sliding windows of ChunkSize characters that advance by
//     ChunkSize-ChunkOverlap. A window that stops short of the end is cut back
//     to its last space when that space lies past 80% of the window.
//   - paragraph: one chunk per blank-line separated paragraph.
//   - sentence: groups of SentencesPerChunk sentences.
//   - markdown_header: one chunk per "## " section, each prefixed with a
//     provenance line and the document's "# " title.
//
// # Basic Usage
//
//	c, err := chunker.New("markdown_header", chunker.DefaultParams())
//	if err != nil {
//	    return err // unknown strategy names are rejected here
//	}
//	chunks, err := c.Chunk(pageText, pageID)
//
// Every emitted chunk is trimmed and non-empty, and carries source_id,
// chunk_index and strategy metadata. Non-blank input always yields at least
// one chunk; blank input yields none.
package chunker
