// Package provider abstracts the reasoning engine boundary: a single
// request/response call taking an ordered message list plus an operation
// catalog and returning one assistant message with a discrete finish
// reason. Adapters for concrete backends live in subpackages.
package provider
