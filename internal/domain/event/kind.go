package event

import (
	"fmt"
	"strings"
)

// Kind names a category of event counted by the system. It is the key for
// every counter, queue and subscription.
type Kind string

const (
	KindA Kind = "A"
	KindB Kind = "B"
)

// All returns the kinds a default run fires.
func All() []Kind {
	return []Kind{KindA, KindB}
}

func (k Kind) String() string { return string(k) }

// ParseKind returns the kind named s if it is one of allowed.
func ParseKind(s string, allowed []Kind) (Kind, error) {
	s = strings.TrimSpace(s)
	for _, k := range allowed {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// ParseKinds converts configured names into kinds, dropping blanks and duplicates.
func ParseKinds(names []string) ([]Kind, error) {
	seen := make(map[Kind]struct{}, len(names))
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		k := Kind(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no event kinds configured")
	}
	return kinds, nil
}
