package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStore(t *testing.T) {
	states := NewStateStore()
	assert.Equal(t, StateNone, states.Get(7))

	states.Set(7, StateWaitingRole)
	assert.Equal(t, StateWaitingRole, states.Get(7))
	assert.Equal(t, StateNone, states.Get(8))

	states.Reset(7)
	assert.Equal(t, StateNone, states.Get(7))
}

func TestRoleStore(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  string
		len   int
	}{
		{name: "unset", want: "", len: 0},
		{name: "custom role", roles: []string{"You are a pirate."}, want: "You are a pirate.", len: 1},
		{name: "latest wins", roles: []string{"pirate", "poet"}, want: "poet", len: 1},
		{name: "empty restores default", roles: []string{"pirate", ""}, want: "", len: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles := NewRoleStore()
			for _, r := range tt.roles {
				roles.Set(7, r)
			}
			assert.Equal(t, tt.want, roles.Get(7))
			assert.Equal(t, tt.len, roles.Len())
		})
	}
}
