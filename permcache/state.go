package permcache

import (
	"errors"
	"fmt"
	"time"

	"github.com/ironhall/gymauth/permission"
)

var (
	// ErrAuthorizationFetch wraps permission fetch failures.
	ErrAuthorizationFetch = errors.New("authorization fetch failed")
	// ErrNotInitialized is returned by operations that need an active role.
	ErrNotInitialized = errors.New("permission cache not initialized")
	// ErrSuperseded is returned when a response was discarded because the cache moved on.
	ErrSuperseded = errors.New("permission response superseded")
	// ErrInvalidRole is returned for non-positive role ids.
	ErrInvalidRole = errors.New("invalid role id")
)

// State is the lifecycle state of a [Cache].
type State uint8

const (
	Uninitialized State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Snapshot is an immutable view of one role's permissions.
type Snapshot struct {
	RoleID    int64
	Modules   permission.Set
	Grants    permission.Set
	FetchedAt time.Time
}

func buildSnapshot(registry *permission.Registry, roleID int64, p permission.Payload, at time.Time) (*Snapshot, error) {
	modules, err := permission.BuildSet(registry, p.AccessibleModules)
	if err != nil {
		return nil, err
	}
	grants, err := permission.BuildSet(registry, p.GrantKeys())
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		RoleID:    roleID,
		Modules:   modules,
		Grants:    grants,
		FetchedAt: at,
	}, nil
}

// FetchKind identifies which operation issued a fetch.
type FetchKind uint8

const (
	FetchInitialize FetchKind = iota
	FetchRefresh
	FetchCompare
)

func (k FetchKind) String() string {
	switch k {
	case FetchInitialize:
		return "initialize"
	case FetchRefresh:
		return "refresh"
	case FetchCompare:
		return "compare"
	default:
		return fmt.Sprintf("fetch(%d)", uint8(k))
	}
}

// FetchEvent describes one completed fetch.
type FetchEvent struct {
	Kind    FetchKind
	RoleID  int64
	Elapsed time.Duration
	Err     error
	// Applied is set when the response replaced the snapshot.
	Applied bool
	// Discarded is set when the response arrived for a superseded request.
	Discarded bool
	// Stale is set when a failed fetch left an older snapshot current.
	Stale bool
	// Differs is the result of a compare.
	Differs bool
}
