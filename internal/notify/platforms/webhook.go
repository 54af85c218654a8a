package platforms

import "context"

// WebhookAdapter posts the message as plain JSON. A non-empty secret is sent
// as a bearer token.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string {
	return "webhook"
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	var headers map[string]string
	if secret != "" {
		headers = map[string]string{"Authorization": "Bearer " + secret}
	}
	return a.client.PostJSON(ctx, endpoint, headers, msg)
}
