package workflow

import (
	"strings"
)

// AllowList is the set of wallet addresses permitted to review. Matching
// ignores case since checksummed and lowercase forms name the same wallet.
type AllowList struct {
	addrs map[string]struct{}
}

// NewAllowList builds a list from addresses, ignoring blanks
func NewAllowList(addresses []string) *AllowList {
	l := &AllowList{addrs: make(map[string]struct{}, len(addresses))}
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		l.addrs[strings.ToLower(a)] = struct{}{}
	}
	return l
}

// Allows reports whether address is listed, ignoring case
func (l *AllowList) Allows(address string) bool {
	if l == nil || address == "" {
		return false
	}
	_, ok := l.addrs[strings.ToLower(strings.TrimSpace(address))]
	return ok
}

// Len returns the number of distinct addresses
func (l *AllowList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.addrs)
}
