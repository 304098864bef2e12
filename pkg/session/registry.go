package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Registry owns the set of capability sessions and the flat
// operation-name index used to dispatch invocations. Index mutation
// happens only through Add and CloseAll; all other methods are
// read-many and safe for concurrent turns.
type Registry struct {
	mu sync.RWMutex

	// sessions maps session id to the live session.
	sessions map[string]*Session

	// order preserves connect order so that a later session's
	// operations overwrite an earlier claim (last-registered wins).
	order []string

	// index maps operation name to owning session id.
	index map[string]string

	// ops maps operation name to its current descriptor.
	ops map[string]Operation

	// names preserves first-seen order of operation names for Catalog.
	names []string
}

// NewRegistry creates an empty registry. Multiple registries can
// coexist; there is no ambient global state.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		index:    make(map[string]string),
		ops:      make(map[string]Operation),
	}
}

// Add merges a connected session's operations into the flat index.
// Fails with ErrDuplicateSession if the id is already present; the
// existing session remains usable. A name collision overwrites the
// previous owner; the overwrite is logged but not rejected.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID())
	}

	r.sessions[s.ID()] = s
	r.order = append(r.order, s.ID())
	r.mergeLocked(s.cached())
	return nil
}

// Connect establishes a session to the provider at path and adds it.
// The duplicate check runs before the process is launched.
func (r *Registry) Connect(ctx context.Context, id, path string) error {
	r.mu.RLock()
	_, exists := r.sessions[id]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}

	s, err := Connect(ctx, id, path)
	if err != nil {
		return err
	}
	return r.Add(s)
}

// ProviderConfig names one capability provider to connect at startup.
type ProviderConfig struct {
	ID   string
	Path string
}

// ConnectAll connects every configured provider. A provider that fails
// to connect is logged and skipped; the registry continues with
// whatever connected successfully.
func (r *Registry) ConnectAll(ctx context.Context, providers []ProviderConfig) {
	for _, p := range providers {
		if err := r.Connect(ctx, p.ID, p.Path); err != nil {
			slog.Warn("skipping capability provider",
				"session", p.ID,
				"path", p.Path,
				"error", err,
			)
			continue
		}
		slog.Info("connected capability provider", "session", p.ID, "path", p.Path)
	}
}

// Resolve returns the id of the session owning the named operation.
func (r *Registry) Resolve(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.index[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	return id, nil
}

// Session returns the session with the given id, or nil.
func (r *Registry) Session(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Catalog re-queries every session's operation list, rebuilds the
// name index, and returns the full descriptor set, each name exactly
// once in first-seen order. A session that fails to answer falls back
// to its last known operations.
func (r *Registry) Catalog(ctx context.Context) []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index = make(map[string]string)
	r.ops = make(map[string]Operation)
	r.names = nil

	for _, id := range r.order {
		s := r.sessions[id]
		ops, err := s.Operations(ctx)
		if err != nil {
			slog.Warn("refreshing operations failed, using last known set",
				"session", id,
				"error", err,
			)
			ops = s.cached()
		}
		r.mergeLocked(ops)
	}

	catalog := make([]Operation, 0, len(r.names))
	for _, name := range r.names {
		catalog = append(catalog, r.ops[name])
	}
	return catalog
}

// mergeLocked folds an operation set into the index. Callers hold r.mu.
func (r *Registry) mergeLocked(ops []Operation) {
	for _, op := range ops {
		if prev, exists := r.index[op.Name]; exists {
			if prev != op.SessionID {
				slog.Warn("operation name collision, last registration wins",
					"operation", op.Name,
					"previous", prev,
					"session", op.SessionID,
				)
			}
		} else {
			r.names = append(r.names, op.Name)
		}
		r.index[op.Name] = op.SessionID
		r.ops[op.Name] = op
	}
}

// Invoke resolves the operation, validates the serialized argument
// payload against the provider-declared schema, and dispatches to the
// owning session. Resolution failure returns ErrUnknownOperation;
// malformed or schema-violating arguments return an *InvocationError
// so the caller can feed the text back to the reasoning engine.
func (r *Registry) Invoke(ctx context.Context, name, rawArgs string) (string, error) {
	id, err := r.Resolve(name)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	s := r.sessions[id]
	op := r.ops[name]
	r.mu.RUnlock()

	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return "", &InvocationError{
				Operation: name,
				Text:      fmt.Sprintf("invalid arguments JSON: %v", err),
			}
		}
	}

	if err := validateArguments(op, args); err != nil {
		return "", &InvocationError{
			Operation: name,
			Text:      fmt.Sprintf("arguments rejected by schema: %v", err),
		}
	}

	return s.Invoke(ctx, name, args)
}

// validateArguments checks the payload against the operation's input
// schema. Operations without a schema accept anything.
func validateArguments(op Operation, args map[string]any) error {
	if len(op.InputSchema) == 0 {
		return nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(op.InputSchema, &schema); err != nil {
		// An unparseable schema is the provider's problem, not the
		// caller's; skip validation rather than reject every call.
		slog.Warn("unparseable input schema, skipping validation",
			"operation", op.Name,
			"error", err,
		)
		return nil
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		slog.Warn("unresolvable input schema, skipping validation",
			"operation", op.Name,
			"error", err,
		)
		return nil
	}

	return resolved.Validate(args)
}

// CloseAll closes every session and clears the index. The only way
// sessions are torn down in bulk; used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if err := s.Close(); err != nil {
			slog.Warn("closing session failed", "session", id, "error", err)
		}
	}

	r.sessions = make(map[string]*Session)
	r.order = nil
	r.index = make(map[string]string)
	r.ops = make(map[string]Operation)
	r.names = nil
}
