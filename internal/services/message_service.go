package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

const (
	maxMessageLength   = 4000
	defaultMessagePage = 50
	maxMessagePage     = 200
)

// MessageView is a message as sent to clients.
type MessageView struct {
	ID             uint                 `json:"id"`
	ConversationID uint                 `json:"conversation_id"`
	Sender         models.AuthorSummary `json:"sender"`
	Content        string               `json:"content"`
	ContentHTML    template.HTML        `json:"content_html"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	ID            uint                 `json:"id"`
	Other         models.AuthorSummary `json:"other"`
	LastMessage   *MessageView         `json:"last_message"`
	LastMessageAt *time.Time           `json:"last_message_at"`
	Unread        int64                `json:"unread"`
}

type MessageService struct {
	db            *gorm.DB
	cache         *utils.QueryCache
	broker        *Broker
	presence      *Presence
	notifications *NotificationService
	log           *zap.Logger
}

func NewMessageService(db *gorm.DB, cache *utils.QueryCache, broker *Broker, presence *Presence, notifications *NotificationService, log *zap.Logger) *MessageService {
	return &MessageService{
		db:            db,
		cache:         cache,
		broker:        broker,
		presence:      presence,
		notifications: notifications,
		log:           log,
	}
}

func newMessageView(m models.Message) MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender.Summary(),
		Content:        m.Content,
		ContentHTML:    utils.RenderMarkdown(m.Content),
		CreatedAt:      m.CreatedAt,
	}
}

// StartConversation returns the direct conversation between actor and
// otherUserID, creating it on first use.
func (s *MessageService) StartConversation(ctx context.Context, actor *models.User, otherUserID uint) (*models.Conversation, error) {
	if otherUserID == actor.ID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidInput)
	}
	tx := s.db.WithContext(ctx)

	var other models.User
	if err := tx.Select("id").First(&other, otherUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", otherUserID, ErrNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	key := directKey(actor.ID, otherUserID)
	if conv, err := s.findDirect(tx, key); err == nil {
		return conv, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	conv := models.Conversation{
		DirectKey:    &key,
		Participants: []models.Participant{{UserID: actor.ID}, {UserID: otherUserID}},
	}
	err := tx.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&conv).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// started concurrently from the other side
		existing, err := s.findDirect(tx, key)
		if err != nil {
			return nil, fmt.Errorf("find conversation: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.cache.Delete(conversationsKey(actor.ID), conversationsKey(otherUserID))
	return &conv, nil
}

// directKey identifies the conversation between two users regardless of
// who started it.
func directKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (s *MessageService) findDirect(tx *gorm.DB, key string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := tx.Preload("Participants").Where("direct_key = ?", key).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// participant loads actor's seat in a conversation.
func (s *MessageService) participant(ctx context.Context, actor *models.User, conversationID uint) (*models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, actor.ID).
		First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load participant: %w", err)
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check conversation: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	}
	return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrForbidden)
}

// ListConversations returns actor's inbox, most recent activity first.
func (s *MessageService) ListConversations(ctx context.Context, actor *models.User) ([]ConversationSummary, error) {
	return utils.Fetch(ctx, s.cache, conversationsKey(actor.ID), func(ctx context.Context) ([]ConversationSummary, error) {
		tx := s.db.WithContext(ctx)

		var seats []models.Participant
		if err := tx.Where("user_id = ?", actor.ID).Find(&seats).Error; err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		if len(seats) == 0 {
			return []ConversationSummary{}, nil
		}
		lastRead := make(map[uint]*time.Time, len(seats))
		ids := make([]uint, 0, len(seats))
		for _, p := range seats {
			lastRead[p.ConversationID] = p.LastReadAt
			ids = append(ids, p.ConversationID)
		}

		var convs []models.Conversation
		err := tx.Preload("Participants.User").
			Where("id IN ?", ids).
			Order("COALESCE(last_message_at, created_at) DESC, id DESC").
			Find(&convs).Error
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}

		out := make([]ConversationSummary, 0, len(convs))
		for _, c := range convs {
			sum := ConversationSummary{ID: c.ID, LastMessageAt: c.LastMessageAt}
			for _, p := range c.Participants {
				if p.UserID != actor.ID {
					sum.Other = p.User.Summary()
				}
			}

			var last models.Message
			err := tx.Preload("Sender").Where("conversation_id = ?", c.ID).
				Order("created_at DESC, id DESC").Limit(1).Find(&last).Error
			if err != nil {
				return nil, fmt.Errorf("last message of conversation %d: %w", c.ID, err)
			}
			if last.ID != 0 {
				v := newMessageView(last)
				sum.LastMessage = &v
			}

			unread := tx.Model(&models.Message{}).Where("conversation_id = ? AND sender_id <> ?", c.ID, actor.ID)
			if t := lastRead[c.ID]; t != nil {
				unread = unread.Where("created_at > ?", *t)
			}
			if err := unread.Count(&sum.Unread).Error; err != nil {
				return nil, fmt.Errorf("count unread of conversation %d: %w", c.ID, err)
			}
			out = append(out, sum)
		}
		return out, nil
	})
}

// ListMessages returns up to limit messages older than before (all when
// before is zero), oldest first.
func (s *MessageService) ListMessages(ctx context.Context, actor *models.User, conversationID uint, before time.Time, limit int) ([]MessageView, error) {
	if _, err := s.participant(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}

	q := s.db.WithContext(ctx).Preload("Sender").Where("conversation_id = ?", conversationID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	var msgs []models.Message
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = newMessageView(m)
	}
	return out, nil
}

// Send appends a message and pushes it to every participant.
func (s *MessageService) Send(ctx context.Context, actor *models.User, conversationID uint, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, maxMessageLength)
	}
	if _, err := s.participant(ctx, actor, conversationID); err != nil {
		return nil, err
	}

	msg := models.Message{ConversationID: conversationID, SenderID: actor.ID, Content: content}
	var userIDs []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		err := tx.Model(&models.Conversation{}).Where("id = ?", conversationID).
			Updates(map[string]any{"last_message_at": msg.CreatedAt, "updated_at": msg.CreatedAt}).Error
		if err != nil {
			return err
		}
		// the sender has read everything up to their own message
		err = tx.Model(&models.Participant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, actor.ID).
			Update("last_read_at", msg.CreatedAt).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.Participant{}).Where("conversation_id = ?", conversationID).Pluck("user_id", &userIDs).Error
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	msg.Sender = *actor
	view := newMessageView(msg)

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, conversationsKey(id))
	}
	s.cache.Delete(keys...)

	online := s.presence.Online(userIDs)
	for _, id := range userIDs {
		s.broker.Publish(id, EventMessageCreated, view)
		s.broker.Publish(id, EventConversationUpdated, map[string]any{
			"conversation_id": conversationID,
			"last_message_at": msg.CreatedAt,
		})
		if id != actor.ID && !online[id] {
			actorID := actor.ID
			s.notifications.notifyAsync(models.Notification{
				UserID:  id,
				ActorID: &actorID,
				Type:    models.NotificationMessage,
				Body:    fmt.Sprintf("%s sent you a message", actor.Username),
			})
		}
	}
	return &view, nil
}

func (s *MessageService) MarkRead(ctx context.Context, actor *models.User, conversationID uint) error {
	p, err := s.participant(ctx, actor, conversationID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(p).Update("last_read_at", time.Now()).Error; err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	s.cache.Delete(conversationsKey(actor.ID))
	return nil
}
