package app

import (
	"context"
	"strings"

	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/notify"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/rbac"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/store"
	"github.com/ketan1435/Smart-Orbit-Backend-sub001/internal/util"
)

// PostMessage persists a chat message and fans it out to the room's
// subscribers. Persistence is the source of truth; the publish is best
// effort.
func (s *Service) PostMessage(ctx context.Context, sess Session, room, body string) (store.ChatMessage, error) {
	if !s.Can(sess.Role, rbac.ActionChat) {
		return store.ChatMessage{}, forbidden("You cannot post messages")
	}
	room = strings.TrimSpace(room)
	body = strings.TrimSpace(body)
	if room == "" || body == "" {
		return store.ChatMessage{}, validation("room and body are required", nil)
	}

	msg := store.ChatMessage{
		ID:         util.NewID("msg"),
		Room:       room,
		SenderID:   sess.UserID,
		SenderName: sess.UserName,
		Body:       body,
	}
	if err := s.store.InsertChatMessage(ctx, msg); err != nil {
		return store.ChatMessage{}, err
	}

	if s.hub != nil {
		_ = s.hub.Publish(ctx, notify.Event{
			Room:     room,
			Kind:     "chat.message",
			SenderID: sess.UserID,
			Body:     body,
		})
	}
	return msg, nil
}

func (s *Service) ChatHistory(ctx context.Context, sess Session, room string, limit int) ([]store.ChatMessage, error) {
	if !s.Can(sess.Role, rbac.ActionChat) {
		return nil, forbidden("You cannot read messages")
	}
	return s.store.ListChatMessages(ctx, room, limit)
}

func (s *Service) ListNotifications(ctx context.Context, sess Session, unreadOnly bool, limit int) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, sess.UserID, unreadOnly, limit)
}

func (s *Service) MarkNotificationRead(ctx context.Context, sess Session, notifID string) error {
	return s.store.MarkNotificationRead(ctx, notifID, sess.UserID)
}
