// Package router implements the optional relevance pre-filter: each
// predefined operation pipeline is scored against the current query by
// a local scoring model, and the catalog offered to the reasoning
// engine is narrowed to the members of qualifying pipelines.
package router
