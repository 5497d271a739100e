package repo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

// Messages owns both the message log and the conversation cache derived
// from it. One lock covers both so they never disagree.
type Messages struct {
	env   Env
	mu    sync.Mutex
	msgs  *collection[store.Message]
	convs *collection[store.Conversation]
}

func NewMessages(env Env) *Messages {
	env = env.withDefaults()
	return &Messages{
		env:   env,
		msgs:  newCollection(env.Store, store.KeyMessages, func(m store.Message) string { return m.ID }, nil),
		convs: newCollection(env.Store, store.KeyConversations, func(c store.Conversation) string { return c.ID }, cloneConversation),
	}
}

func (r *Messages) Init(ctx context.Context) error {
	if err := r.msgs.load(ctx, nil); err != nil {
		return err
	}
	return r.convs.load(ctx, nil)
}

func (r *Messages) All() []store.Message {
	return r.msgs.all()
}

func (r *Messages) Conversations() []store.Conversation {
	return r.convs.all()
}

// Send appends a message and refreshes the pair's conversation.
func (r *Messages) Send(ctx context.Context, senderID, recipientID, text string) (store.Message, error) {
	text = strings.TrimSpace(text)
	if senderID == "" || recipientID == "" || text == "" {
		return store.Message{}, apperr.Validation("MESSAGE_FIELDS_REQUIRED", "sender, recipient and text are required")
	}
	msg := store.Message{
		ID:          r.env.NewID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		Timestamp:   r.env.Now(),
	}

	r.lock()
	defer r.unlock()
	prev := r.msgs.items
	if err := r.msgs.appendLocked(ctx, msg); err != nil {
		return store.Message{}, err
	}
	if err := r.refreshLocked(ctx, senderID, recipientID); err != nil {
		r.rollbackLocked(ctx, prev)
		return store.Message{}, err
	}
	return msg, nil
}

// Between returns the messages exchanged by a and b, oldest first.
func (r *Messages) Between(a, b string) []store.Message {
	r.lock()
	defer r.unlock()
	return r.betweenLocked(a, b)
}

// MarkRead marks every message from senderID to readerID as read and
// returns how many changed.
func (r *Messages) MarkRead(ctx context.Context, readerID, senderID string) (int, error) {
	r.lock()
	defer r.unlock()

	prev := r.msgs.items
	next := make([]store.Message, len(prev))
	changed := 0
	for i, m := range prev {
		if m.SenderID == senderID && m.RecipientID == readerID && !m.IsRead {
			m.IsRead = true
			changed++
		}
		next[i] = m
	}
	if changed == 0 {
		return 0, nil
	}
	if err := r.msgs.commitLocked(ctx, next); err != nil {
		return 0, err
	}
	if err := r.refreshLocked(ctx, readerID, senderID); err != nil {
		r.rollbackLocked(ctx, prev)
		return 0, err
	}
	return changed, nil
}

// ConversationsFor lists the conversations userID takes part in.
func (r *Messages) ConversationsFor(userID string) []store.Conversation {
	var out []store.Conversation
	for _, c := range r.convs.all() {
		if c.Has(userID) {
			out = append(out, c)
		}
	}
	return out
}

// UnreadFor counts unread messages addressed to userID.
func (r *Messages) UnreadFor(userID string) int {
	r.lock()
	defer r.unlock()
	n := 0
	for _, m := range r.msgs.items {
		if m.RecipientID == userID && !m.IsRead {
			n++
		}
	}
	return n
}

func (r *Messages) lock() {
	r.mu.Lock()
	r.msgs.mu.Lock()
	r.convs.mu.Lock()
}

func (r *Messages) unlock() {
	r.convs.mu.Unlock()
	r.msgs.mu.Unlock()
	r.mu.Unlock()
}

func (r *Messages) betweenLocked(a, b string) []store.Message {
	var out []store.Message
	for _, m := range r.msgs.items {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// refreshLocked recomputes the conversation record for the pair a, b,
// creating it on first contact.
func (r *Messages) refreshLocked(ctx context.Context, a, b string) error {
	thread := r.betweenLocked(a, b)

	conv := store.Conversation{ID: r.env.NewID(), User1ID: a, User2ID: b}
	i := -1
	for j, c := range r.convs.items {
		if c.Has(a) && c.Has(b) && c.Other(a) == b {
			conv, i = cloneConversation(c), j
			break
		}
	}

	conv.Unread = map[string]int{}
	if len(thread) > 0 {
		last := thread[len(thread)-1]
		conv.LastMessageTime = last.Timestamp
		conv.LastMessageText = last.Text
	} else {
		conv.LastMessageTime = r.env.Now()
		conv.LastMessageText = ""
	}
	for _, m := range thread {
		if !m.IsRead {
			conv.Unread[m.RecipientID]++
		}
	}

	if i < 0 {
		return r.convs.appendLocked(ctx, conv)
	}
	return r.convs.replaceLocked(ctx, i, conv)
}

// rollbackLocked restores the message log after a failed conversation write.
func (r *Messages) rollbackLocked(ctx context.Context, prev []store.Message) {
	if err := r.msgs.commitLocked(ctx, prev); err != nil {
		r.env.Log.WithError(err).Error("restore messages after failed conversation write")
		r.msgs.items = prev
	}
}

func cloneConversation(c store.Conversation) store.Conversation {
	if c.Unread != nil {
		unread := make(map[string]int, len(c.Unread))
		for k, v := range c.Unread {
			unread[k] = v
		}
		c.Unread = unread
	}
	return c
}
