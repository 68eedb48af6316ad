// Package embedder turns knowledge base chunks and search queries into
// 384-dimensional vectors.
//
// Two providers are available:
//
//   - openai / openrouter: any OpenAI-compatible embeddings endpoint, called
//     through go-openai with the dimensions parameter pinned to 384
//   - local: an offline feature-hashing embedder for development and tests
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "openai", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vector, err := emb.Embed(ctx, "best tiramisu in town")
//
// EmbedBatch returns one vector per input text in input order. Blank texts
// get a zero vector without a provider call, and cached texts are served
// from an LRU keyed by the SHA-256 of the text.
//
// # Provider Selection
//
// An empty Config.Provider is resolved from the environment:
//
//  1. If BITERATE_EMBEDDING_PROVIDER is set, use it
//  2. Else if OPENAI_API_KEY is set, use openai
//  3. Else if OPENROUTER_API_KEY is set, use openrouter
//  4. Else fall back to local
//
// # Error Handling
//
// Remote failures are wrapped in ErrProviderFailed. Retries with
// exponential backoff are off unless Config.MaxRetries is set.
package embedder
