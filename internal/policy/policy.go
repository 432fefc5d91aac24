// Package policy answers the two permission questions the manager asks:
// whether an actor holds a global capability, and whether an actor may apply
// a named policy to a specific chunk.
package policy

import (
	"slices"
	"strings"

	"go-element-manager/internal/model"
)

// Global capabilities consulted by the chunk controllers.
const (
	PermEditChunk               = "edit_chunk"
	PermEditLocked              = "edit_locked"
	PermUnlockElementProperties = "unlock_element_properties"
)

// Record-level policy names.
const (
	PolicyView = "view"
	PolicySave = "save"
)

// Actor is the authenticated manager user a request runs as.
type Actor struct {
	ID          string   `mapstructure:"id"`
	Username    string   `mapstructure:"username"`
	Groups      []string `mapstructure:"groups"`
	Permissions []string `mapstructure:"permissions"`
	Locale      string   `mapstructure:"locale"`
	// Sudo actors pass every check.
	Sudo bool `mapstructure:"sudo"`
}

// HasPermission reports whether the actor holds the global capability.
func (a Actor) HasPermission(perm string) bool {
	return a.Sudo || slices.Contains(a.Permissions, perm)
}

// InGroup reports whether the actor is a member of group.
func (a Actor) InGroup(group string) bool {
	return slices.Contains(a.Groups, group)
}

// Rule grants policies on every chunk in a category to a user group.
type Rule struct {
	Category string   `mapstructure:"category"`
	Group    string   `mapstructure:"group"`
	Policies []string `mapstructure:"policies"`
}

// ACL evaluates category-scoped access rules.
// A category without any rule is open to every actor.
type ACL struct {
	rules map[string][]Rule
}

// NewACL indexes rules by category.
func NewACL(rules []Rule) *ACL {
	acl := &ACL{rules: make(map[string][]Rule)}
	for _, r := range rules {
		cat := strings.TrimSpace(r.Category)
		acl.rules[cat] = append(acl.rules[cat], r)
	}
	return acl
}

// Check answers a global capability check when target is nil, otherwise
// whether the actor may apply policyName to target.
func (acl *ACL) Check(actor Actor, policyName string, target *model.Chunk) bool {
	if actor.Sudo {
		return true
	}
	if target == nil {
		return actor.HasPermission(policyName)
	}
	if acl == nil {
		return true
	}
	rules, restricted := acl.rules[strings.TrimSpace(target.Category)]
	if !restricted {
		return true
	}
	for _, r := range rules {
		if actor.InGroup(r.Group) && slices.Contains(r.Policies, policyName) {
			return true
		}
	}
	return false
}
