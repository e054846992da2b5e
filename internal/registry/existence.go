package registry

// Existence is the outcome of a maintainer lookup.
type Existence int

const (
	// Exists means the registry confirmed the maintainer.
	Exists Existence = iota
	// NotFound means the registry answered 404.
	NotFound
	// UnknownTreatedAsExists means the registry could not answer; callers fail open.
	UnknownTreatedAsExists
)

// Allowed reports whether a subscription to the maintainer may proceed.
func (e Existence) Allowed() bool {
	return e != NotFound
}

func (e Existence) String() string {
	switch e {
	case Exists:
		return "exists"
	case NotFound:
		return "not_found"
	case UnknownTreatedAsExists:
		return "unknown"
	default:
		return "invalid"
	}
}

// existenceFromStatus maps a watch_by_maintainer status code onto Existence.
func existenceFromStatus(status int) Existence {
	switch status {
	case 200:
		return Exists
	case 404:
		return NotFound
	default:
		return UnknownTreatedAsExists
	}
}
