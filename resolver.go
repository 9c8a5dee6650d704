package lineload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TargetKind identifies which destination a conflict concerns.
type TargetKind int

const (
	// TargetDatabase is the database file
	TargetDatabase TargetKind = iota
	// TargetTable is the table inside the database
	TargetTable
)

// String returns the string representation of TargetKind
func (k TargetKind) String() string {
	if k == TargetTable {
		return "table"
	}
	return "database"
}

// ResolutionState is the terminal state of resolving one destination name.
//
//	NotPresent      -> Created
//	PresentConflict -> Overwritten | Renamed | Cancelled | Reused (database only)
type ResolutionState int

const (
	// StateCreated means the name was free and the target is created
	StateCreated ResolutionState = iota
	// StateOverwritten means the existing target is destroyed and recreated
	StateOverwritten
	// StateRenamed means a different, free name is used
	StateRenamed
	// StateCancelled means the run stops here
	StateCancelled
	// StateReused means the existing database file is kept and written into
	StateReused
)

// String returns the string representation of ResolutionState
func (s ResolutionState) String() string {
	switch s {
	case StateOverwritten:
		return "overwritten"
	case StateRenamed:
		return "renamed"
	case StateCancelled:
		return "cancelled"
	case StateReused:
		return "reused"
	default:
		return "created"
	}
}

// Conflict describes an existing target that blocks the chosen name.
type Conflict struct {
	Kind TargetKind
	// Name is the name currently in conflict
	Name string
	// Original is the name first asked for
	Original string
	// Attempt counts the conflicts seen so far for this target, from 0
	Attempt int
}

// Decision answers a Conflict. Name is only read for ConflictRename.
type Decision struct {
	Action ConflictAction
	Name   string
}

// ConflictResolver decides how to handle an existing database file or table.
// It is asked again after every rename until the name is free or it cancels.
type ConflictResolver interface {
	Resolve(ctx context.Context, conflict Conflict) (Decision, error)
}

// PolicyResolver answers conflicts from a fixed ConflictPolicy. For
// ConflictRename it proposes RenameTo in order, then "<name>_<n>" for n up
// to MaxRenameAttempts, and cancels after that.
type PolicyResolver struct {
	policy ConflictPolicy
}

// NewPolicyResolver returns a resolver for policy.
func NewPolicyResolver(policy ConflictPolicy) *PolicyResolver {
	return &PolicyResolver{policy: policy}
}

// Resolve implements ConflictResolver.
func (r *PolicyResolver) Resolve(_ context.Context, conflict Conflict) (Decision, error) {
	switch r.policy.Action {
	case ConflictOverwrite:
		return Decision{Action: ConflictOverwrite}, nil
	case ConflictReuse:
		return Decision{Action: ConflictReuse}, nil
	case ConflictRename:
		if conflict.Attempt < len(r.policy.RenameTo) {
			return Decision{Action: ConflictRename, Name: strings.TrimSpace(r.policy.RenameTo[conflict.Attempt])}, nil
		}
		n := conflict.Attempt - len(r.policy.RenameTo) + 1
		if n > MaxRenameAttempts {
			return Decision{Action: ConflictCancel}, fmt.Errorf("%w: %s after %d attempts", ErrRenameExhausted, conflict.Original, MaxRenameAttempts)
		}
		return Decision{Action: ConflictRename, Name: suffixedName(conflict.Kind, conflict.Original, n)}, nil
	default:
		return Decision{Action: ConflictCancel}, nil
	}
}

// suffixedName returns "<base>_<n>", keeping a database extension last.
func suffixedName(kind TargetKind, original string, n int) string {
	if kind == TargetDatabase {
		base := strings.TrimSuffix(filepath.Base(original), DefaultDatabaseExtension)
		return fmt.Sprintf("%s_%d%s", base, n, DefaultDatabaseExtension)
	}
	return fmt.Sprintf("%s_%d", original, n)
}

// target abstracts the existence check and name normalization of one
// destination so the same state machine serves files and tables.
type target struct {
	kind TargetKind
	// exists reports whether name is taken
	exists func(ctx context.Context, name string) (bool, error)
	// normalize validates a proposed rename and returns the name to check
	normalize func(name string) (string, error)
}

// resolution is the outcome of resolveTarget.
type resolution struct {
	State ResolutionState
	Name  string
}

// resolveTarget runs the conflict state machine for one destination. The
// current name is local to this call; nothing is modified here, the caller
// performs the side effect the returned state asks for. A cancel returns
// ErrCancelled.
func resolveTarget(ctx context.Context, t target, name string, resolver ConflictResolver) (resolution, error) {
	current := name
	renamed := false

	for attempt := 0; ; attempt++ {
		exists, err := t.exists(ctx, current)
		if err != nil {
			return resolution{Name: current}, err
		}
		if !exists {
			if renamed {
				return resolution{State: StateRenamed, Name: current}, nil
			}
			return resolution{State: StateCreated, Name: current}, nil
		}

		decision, err := resolver.Resolve(ctx, Conflict{
			Kind:     t.kind,
			Name:     current,
			Original: name,
			Attempt:  attempt,
		})
		if err != nil {
			if decision.Action == ConflictCancel {
				return resolution{State: StateCancelled, Name: current}, errors.Join(ErrCancelled, err)
			}
			return resolution{Name: current}, fmt.Errorf("conflict resolver failed: %w", err)
		}

		switch decision.Action {
		case ConflictOverwrite:
			return resolution{State: StateOverwritten, Name: current}, nil
		case ConflictReuse:
			if t.kind != TargetDatabase {
				return resolution{Name: current}, fmt.Errorf("cannot reuse an existing %s", t.kind)
			}
			return resolution{State: StateReused, Name: current}, nil
		case ConflictRename:
			next, err := t.normalize(decision.Name)
			if err != nil {
				return resolution{Name: current}, fmt.Errorf("invalid %s name %q: %w", t.kind, decision.Name, err)
			}
			current = next
			renamed = true
		default:
			return resolution{State: StateCancelled, Name: current}, ErrCancelled
		}
	}
}

// databaseTarget checks database files inside dir.
func databaseTarget(dir string) target {
	v := newValidator()
	return target{
		kind: TargetDatabase,
		exists: func(_ context.Context, path string) (bool, error) {
			info, err := os.Stat(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return false, nil
				}
				return false, fmt.Errorf("failed to stat database file: %w", err)
			}
			if info.IsDir() {
				return false, fmt.Errorf("database path is a directory: %s", path)
			}
			return true, nil
		},
		normalize: func(name string) (string, error) {
			fileName, err := v.normalizeDatabaseName(name)
			if err != nil {
				return "", err
			}
			return filepath.Join(dir, fileName), nil
		},
	}
}

// tableTarget checks tables inside s.
func tableTarget(s *store) target {
	return target{
		kind: TargetTable,
		exists: func(ctx context.Context, name string) (bool, error) {
			table, err := NewTableName(name)
			if err != nil {
				return false, err
			}
			return s.tableExists(ctx, table)
		},
		normalize: func(name string) (string, error) {
			table, err := NewTableName(name)
			if err != nil {
				return "", err
			}
			return table.String(), nil
		},
	}
}
