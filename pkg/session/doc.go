// Package session manages connections to capability providers: external
// MCP server processes launched over stdio, each advertising a set of
// named, schema-described operations. A Session owns one provider
// process; the Registry owns the set of sessions and the flat
// operation-name index used for dispatch.
package session
