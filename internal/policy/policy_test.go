package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-element-manager/internal/model"
)

func TestActorHasPermission(t *testing.T) {
	editor := Actor{Username: "editor", Permissions: []string{PermEditChunk}}
	assert.True(t, editor.HasPermission(PermEditChunk))
	assert.False(t, editor.HasPermission(PermEditLocked))

	admin := Actor{Username: "admin", Sudo: true}
	assert.True(t, admin.HasPermission(PermEditLocked))
}

func TestACLCheck(t *testing.T) {
	acl := NewACL([]Rule{
		{Category: "restricted", Group: "designers", Policies: []string{PolicyView, PolicySave}},
		{Category: "restricted", Group: "auditors", Policies: []string{PolicyView}},
		{Category: "secret", Group: "nobody", Policies: []string{PolicySave}},
	})

	designer := Actor{Username: "d", Groups: []string{"designers"}}
	auditor := Actor{Username: "a", Groups: []string{"auditors"}}
	outsider := Actor{Username: "o", Groups: []string{"writers"}, Permissions: []string{PermEditChunk}}
	admin := Actor{Username: "root", Sudo: true}

	open := &model.Chunk{ID: "1", Name: "Open"}
	restricted := &model.Chunk{ID: "2", Name: "Restricted", Category: "restricted"}
	secret := &model.Chunk{ID: "3", Name: "Secret", Category: "secret"}

	tests := []struct {
		name   string
		actor  Actor
		policy string
		target *model.Chunk
		want   bool
	}{
		{"open category", outsider, PolicyView, open, true},
		{"group granted view", designer, PolicyView, restricted, true},
		{"group granted save", designer, PolicySave, restricted, true},
		{"group without save", auditor, PolicySave, restricted, false},
		{"not in any group", outsider, PolicyView, restricted, false},
		{"rule exists but no view grant", designer, PolicyView, secret, false},
		{"sudo bypasses rules", admin, PolicyView, secret, true},
		{"global permission held", outsider, PermEditChunk, nil, true},
		{"global permission missing", outsider, PermEditLocked, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, acl.Check(tt.actor, tt.policy, tt.target))
		})
	}
}

func TestNilACLIsOpen(t *testing.T) {
	var acl *ACL
	assert.True(t, acl.Check(Actor{}, PolicyView, &model.Chunk{Category: "x"}))
	assert.False(t, acl.Check(Actor{}, PermEditChunk, nil))
}
