// Package notion reads the BiteRate workspace: company pages rendered as
// plain text, and review databases converted into typed property values.
//
// Page text is built block by block. Headings are rendered as markdown
// headings so the markdown_header chunking strategy can split on them.
//
// Database properties are converted once, at the boundary, into one of the
// PropertyValue variants. Reviews are read either from database properties
// (ReviewFromEntry) or from free-form pages (ParsePageAsReview).
package notion
