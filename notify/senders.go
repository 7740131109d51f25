package notify

import (
	"approvalflow/common"
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg *Message) error {
	logrus.WithFields(logrus.Fields{"template": msg.Template, "recipient": msg.Recipient}).Info(msg.Body)
	return nil
}

// WebhookSender posts each message as JSON to a fixed endpoint.
type WebhookSender struct {
	URL     string
	Headers http.Header
}

func (s *WebhookSender) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = common.HttpInvokeJson(ctx, http.MethodPost, s.URL, s.Headers, string(body))
	return err
}
