// Package openaichat implements provider.Provider against an
// OpenAI-compatible Chat Completions endpoint (/v1/chat/completions).
// This is the wire surface the reasoning engine and the router's local
// scoring model both expose.
package openaichat
