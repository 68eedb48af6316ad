// Package llm drafts BiteRate posts and comment replies, and generates post
// illustrations.
//
// Chat goes through any OpenAI-compatible endpoint: OpenAI directly, or
// OpenRouter with its attribution headers. Drafts are post-processed by
// FinalizePost so that the model never controls hashtags or overall length:
//
//	text, err := client.GeneratePost(ctx, llm.PostRequest{
//	    CompanyInfo:     info,
//	    Reviews:         reviews,
//	    Context:         ragContext,
//	    MaxLength:       500,
//	    IncludeHashtags: true,
//	    Hashtags:        llm.NormalizeHashtags(cfg.Hashtags),
//	})
//	if err != nil {
//	    text = llm.Fallback(req)
//	}
package llm
