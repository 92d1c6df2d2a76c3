package event

// Typed views over the kind-specific payload maps. The wire shape stays a
// map so unknown kinds survive round-trips; these accessors are for handler
// convenience.

type MessagePayload struct {
	ID        string
	SenderID  string
	Content   string
	ScopeID   string
	ThreadRef string
}

type MessageUpdatePayload struct {
	ID         string
	NewContent string
}

type PresencePayload struct {
	UserID string
	Status string
}

type TypingPayload struct {
	UserID    string
	TargetRef string
}

type ChannelPayload struct {
	Op        string
	ChannelID string
	Name      string
}

type SubscriptionPayload struct {
	Op        string
	ChannelID string
	UserID    string
}

func (e Event) Message() MessagePayload {
	return MessagePayload{
		ID:        e.str("id"),
		SenderID:  e.str("sender_id"),
		Content:   e.str("content"),
		ScopeID:   e.str("scope_id"),
		ThreadRef: e.str("thread_ref"),
	}
}

func (e Event) MessageUpdate() MessageUpdatePayload {
	return MessageUpdatePayload{
		ID:         e.str("id"),
		NewContent: e.str("new_content"),
	}
}

func (e Event) Presence() PresencePayload {
	return PresencePayload{
		UserID: e.str("user_id"),
		Status: e.str("status"),
	}
}

func (e Event) Typing() TypingPayload {
	return TypingPayload{
		UserID:    e.str("user_id"),
		TargetRef: e.str("target_ref"),
	}
}

func (e Event) Channel() ChannelPayload {
	return ChannelPayload{
		Op:        e.str("op"),
		ChannelID: e.str("channel_id"),
		Name:      e.str("name"),
	}
}

func (e Event) Subscription() SubscriptionPayload {
	return SubscriptionPayload{
		Op:        e.str("op"),
		ChannelID: e.str("channel_id"),
		UserID:    e.str("user_id"),
	}
}

// NewMessage builds a message event.
func NewMessage(scopeID string, p MessagePayload) Event {
	if p.ScopeID == "" {
		p.ScopeID = scopeID
	}
	return New(KindMessage, scopeID, map[string]interface{}{
		"id":         p.ID,
		"sender_id":  p.SenderID,
		"content":    p.Content,
		"scope_id":   p.ScopeID,
		"thread_ref": p.ThreadRef,
	})
}

func NewMessageUpdated(scopeID string, p MessageUpdatePayload) Event {
	return New(KindMessageUpdated, scopeID, map[string]interface{}{
		"id":          p.ID,
		"new_content": p.NewContent,
	})
}

func NewMessageDeleted(scopeID, messageID string) Event {
	return New(KindMessageDeleted, scopeID, map[string]interface{}{
		"id": messageID,
	})
}

func NewPresence(scopeID string, p PresencePayload) Event {
	return New(KindPresence, scopeID, map[string]interface{}{
		"user_id": p.UserID,
		"status":  p.Status,
	})
}

func NewTyping(scopeID string, p TypingPayload) Event {
	return New(KindTyping, scopeID, map[string]interface{}{
		"user_id":    p.UserID,
		"target_ref": p.TargetRef,
	})
}

func NewChannel(scopeID string, p ChannelPayload) Event {
	return New(KindChannel, scopeID, map[string]interface{}{
		"op":         p.Op,
		"channel_id": p.ChannelID,
		"name":       p.Name,
	})
}

func NewSubscription(scopeID string, p SubscriptionPayload) Event {
	return New(KindSubscription, scopeID, map[string]interface{}{
		"op":         p.Op,
		"channel_id": p.ChannelID,
		"user_id":    p.UserID,
	})
}
