package wipe

import (
	"context"

	"github.com/sirupsen/logrus"

	"wipe-commander/internal/chat"
)

// PermissionGate answers whether the bot may delete messages in a chat.
type PermissionGate struct {
	transport chat.Transport
	logger    *logrus.Logger
}

// NewPermissionGate creates a gate over transport.
func NewPermissionGate(transport chat.Transport, logger *logrus.Logger) *PermissionGate {
	return &PermissionGate{transport: transport, logger: logger}
}

// CanDelete checks the cached admin rights first and falls back to an explicit
// member lookup for the bot. Any lookup error means "not permitted".
func (g *PermissionGate) CanDelete(ctx context.Context, chatID int64) bool {
	rights, err := g.transport.ChatAdminRights(ctx, chatID)
	if err != nil {
		g.logger.WithField("chat_id", chatID).WithError(err).Warn("Failed to read cached admin rights")
	} else if rights != nil && rights.DeleteMessages {
		return true
	}

	me, err := g.transport.Self(ctx)
	if err != nil {
		g.logger.WithField("chat_id", chatID).WithError(err).Error("Failed to resolve bot identity")
		return false
	}

	perms, err := g.transport.Permissions(ctx, chatID, me.ID)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"user_id": me.ID,
		}).WithError(err).Error("Failed to verify administrator rights")
		return false
	}

	switch perms.Status {
	case chat.StatusCreator:
		return true
	case chat.StatusAdministrator:
		return perms.CanDeleteMessages
	default:
		return false
	}
}
