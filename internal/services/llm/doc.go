// Package llm provides the OpenRouter-compatible chat completion client that
// every pipeline stage uses to draft and edit chapter text.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts with a token budget and sampling
// temperature, receive the model's text.
// Client.HealthCheck: verify API key and model availability.
// DecodeJSON: decode structured output, tolerating code fences and prose
// around the JSON body.
//
// # Retry Behaviour
//
// The client retries HTTP 408/5xx errors, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). HTTP 429 is never retried here: it is returned as a *StatusError
// whose RateLimited method reports true, carrying any Retry-After hint, so the
// queue can pause the job instead of burning the session quota.
package llm
