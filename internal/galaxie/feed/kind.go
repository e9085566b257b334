package feed

import "fmt"

// Kind identifies one upstream REST feed.
type Kind int

// Feed kinds.
const (
	PreviousRace Kind = iota + 1
	NextRace
	Live
	BackendConfig
)

// Kinds returns every feed kind in a stable order.
func Kinds() []Kind {
	return []Kind{PreviousRace, NextRace, Live, BackendConfig}
}

// String returns the feed name used in logs, metrics and the API.
func (k Kind) String() string {
	switch k {
	case PreviousRace:
		return "previous_race"
	case NextRace:
		return "next_race"
	case Live:
		return "live"
	case BackendConfig:
		return "config"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Path returns the endpoint path relative to the base URL.
func (k Kind) Path() string {
	switch k {
	case PreviousRace:
		return "/api/previous_race/"
	case NextRace:
		return "/api/next_race/"
	case Live:
		return "/api/live/"
	case BackendConfig:
		return "/api/config/"
	default:
		return ""
	}
}

// Valid reports whether k is a known feed kind.
func (k Kind) Valid() bool {
	return k >= PreviousRace && k <= BackendConfig
}

// ParseKind converts a feed name back into a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
