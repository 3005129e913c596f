// Package teams adapts the Bot Framework activity protocol used by
// Microsoft Teams.
package teams

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ActivityMessage            = "message"
	ActivityConversationUpdate = "conversationUpdate"
)

type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ConversationAccount struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
}

type Entity struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Mentioned *ChannelAccount `json:"mentioned,omitempty"`
}

type Attachment struct {
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Activity is the subset of the Bot Framework activity schema the bot reads
// and writes.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Timestamp    string              `json:"timestamp,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from"`
	Conversation ConversationAccount `json:"conversation"`
	Recipient    ChannelAccount      `json:"recipient"`
	Text         string              `json:"text,omitempty"`
	TextFormat   string              `json:"textFormat,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
	Entities     []Entity            `json:"entities,omitempty"`
	Attachments  []Attachment        `json:"attachments,omitempty"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
}

// ConversationReference is enough to message a conversation later.
type ConversationReference struct {
	ActivityID   string              `json:"activityId,omitempty"`
	User         ChannelAccount      `json:"user"`
	Bot          ChannelAccount      `json:"bot"`
	Conversation ConversationAccount `json:"conversation"`
	ChannelID    string              `json:"channelId"`
	ServiceURL   string              `json:"serviceUrl"`
}

// Reference returns the conversation reference of an incoming activity.
func (a Activity) Reference() ConversationReference {
	return ConversationReference{
		ActivityID:   a.ID,
		User:         a.From,
		Bot:          a.Recipient,
		Conversation: a.Conversation,
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
	}
}

// EncodeReference serializes ref for storage with a task.
func EncodeReference(ref ConversationReference) (string, error) {
	data, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("marshal conversation reference: %w", err)
	}
	return string(data), nil
}

func DecodeReference(s string) (ConversationReference, error) {
	var ref ConversationReference
	if err := json.Unmarshal([]byte(s), &ref); err != nil {
		return ref, fmt.Errorf("unmarshal conversation reference: %w", err)
	}
	if ref.ServiceURL == "" || ref.Conversation.ID == "" {
		return ref, fmt.Errorf("conversation reference without service url or conversation id")
	}
	return ref, nil
}

// StripMentions removes the text of every mention entity from the message.
func StripMentions(a Activity) string {
	text := a.Text
	for _, e := range a.Entities {
		if e.Type == "mention" && e.Text != "" {
			text = strings.ReplaceAll(text, e.Text, "")
		}
	}
	return strings.TrimSpace(text)
}
