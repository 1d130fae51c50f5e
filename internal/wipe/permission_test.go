package wipe

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"wipe-commander/internal/chat"
	"wipe-commander/internal/chat/chattest"
)

func TestPermissionGate(t *testing.T) {
	tests := []struct {
		name    string
		rights  *chat.AdminRights
		member  *chat.Permissions
		permErr error
		want    bool
	}{
		{
			name:   "cached delete right",
			rights: &chat.AdminRights{DeleteMessages: true},
			want:   true,
		},
		{
			name:   "creator without delete flag",
			member: &chat.Permissions{Status: chat.StatusCreator},
			want:   true,
		},
		{
			name:   "administrator with delete right",
			member: &chat.Permissions{Status: chat.StatusAdministrator, CanDeleteMessages: true},
			want:   true,
		},
		{
			name:   "administrator without delete right",
			member: &chat.Permissions{Status: chat.StatusAdministrator},
			want:   false,
		},
		{
			name:   "cached rights without delete fall back to lookup",
			rights: &chat.AdminRights{DeleteMessages: false},
			member: &chat.Permissions{Status: chat.StatusAdministrator, CanDeleteMessages: true},
			want:   true,
		},
		{
			name:   "plain member",
			member: &chat.Permissions{Status: chat.StatusMember},
			want:   false,
		},
		{
			name:    "lookup error",
			permErr: errors.New("chat not found"),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := chattest.New(chat.Identity{ID: botID, Username: "wipe_bot"})
			if tt.rights != nil {
				tr.Rights[-100] = tt.rights
			}
			if tt.member != nil {
				tr.Members[-100] = *tt.member
			}
			tr.PermErr = tt.permErr

			gate := NewPermissionGate(tr, quietLogger())
			assert.Equal(t, tt.want, gate.CanDelete(context.Background(), -100))
		})
	}
}
