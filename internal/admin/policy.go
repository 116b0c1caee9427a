// Package admin gates privileged operations behind an injectable policy.
package admin

import "strings"

// DefaultAdmins is the allow-list used when none is configured.
var DefaultAdmins = []string{"admin", "administrator", "root", "sysadmin"}

// Policy decides whether an identity holds administrative privilege.
type Policy interface {
	IsPrivileged(identity string) bool
}

// AllowList grants privilege to an exact, case-sensitive set of names.
type AllowList map[string]struct{}

// NewAllowList builds an allow-list, ignoring blank names.
func NewAllowList(names ...string) AllowList {
	list := make(AllowList, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			list[name] = struct{}{}
		}
	}
	return list
}

// IsPrivileged reports whether identity is on the list.
func (l AllowList) IsPrivileged(identity string) bool {
	if identity == "" {
		return false
	}
	_, ok := l[identity]
	return ok
}
