// Package engine implements the conversation orchestrator: the
// propose/execute/observe loop between the reasoning engine and the
// capability sessions, the bounded conversation history, and a
// submit-and-wait worker adapter for embedding surfaces that cannot
// suspend.
package engine
