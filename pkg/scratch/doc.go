// Package scratch owns the scratch root directory for transient files
// produced during turns: path allocation, TTL- and size-based
// reclamation, and full clears at process start and shutdown.
package scratch
