package teams

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	botFrameworkScope = "https://api.botframework.com/.default"
	defaultTenant     = "botframework.com"
)

// Connector sends activities through the Bot Framework connector REST API.
type Connector struct {
	cred   azcore.TokenCredential
	client *http.Client
	logger *slog.Logger
}

// NewConnector authenticates with the app's client credentials. An empty
// tenant uses the multi-tenant Bot Framework tenant.
func NewConnector(appID, appPassword, tenantID string, logger *slog.Logger) (*Connector, error) {
	if tenantID == "" {
		tenantID = defaultTenant
	}
	cred, err := azidentity.NewClientSecretCredential(tenantID, appID, appPassword, nil)
	if err != nil {
		return nil, fmt.Errorf("create bot credential: %w", err)
	}
	return NewConnectorWithCredential(cred, logger), nil
}

// NewConnectorWithCredential uses cred for outbound tokens. A nil cred sends
// unauthenticated requests, which only the local emulator accepts.
func NewConnectorWithCredential(cred azcore.TokenCredential, logger *slog.Logger) *Connector {
	return &Connector{
		cred:   cred,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// Send posts act to the conversation of ref. Activities with ReplyToID are
// sent as replies to that activity.
func (c *Connector) Send(ctx context.Context, ref ConversationReference, act Activity) error {
	if act.Type == "" {
		act.Type = ActivityMessage
	}
	act.From = ref.Bot
	act.Recipient = ref.User
	act.Conversation = ref.Conversation
	act.ChannelID = ref.ChannelID
	act.ServiceURL = ref.ServiceURL

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimRight(ref.ServiceURL, "/"), url.PathEscape(ref.Conversation.ID))
	if act.ReplyToID != "" {
		endpoint += "/" + url.PathEscape(act.ReplyToID)
	}

	body, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	if c.cred != nil {
		tok, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{botFrameworkScope}})
		if err != nil {
			return fmt.Errorf("acquire bot token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("connector error %d: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Reply answers an incoming activity in its conversation.
func (c *Connector) Reply(ctx context.Context, in Activity, text string) error {
	return c.Send(ctx, in.Reference(), Activity{Type: ActivityMessage, Text: text, ReplyToID: in.ID})
}

// SendText messages a stored conversation reference.
func (c *Connector) SendText(ctx context.Context, reference, text string) error {
	ref, err := DecodeReference(reference)
	if err != nil {
		return err
	}
	return c.Send(ctx, ref, Activity{Type: ActivityMessage, Text: text})
}

// SendFile messages a stored conversation reference with data attached inline
// as a base64 data URI.
func (c *Connector) SendFile(ctx context.Context, reference, text, fileName, contentType string, data []byte) error {
	ref, err := DecodeReference(reference)
	if err != nil {
		return err
	}
	att := Attachment{
		ContentType: contentType,
		ContentURL:  DataURI(contentType, data),
		Name:        fileName,
	}
	c.logger.Debug("sending teams attachment", "file_name", fileName, "size", len(data))
	return c.Send(ctx, ref, Activity{Type: ActivityMessage, Text: text, Attachments: []Attachment{att}})
}

func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
