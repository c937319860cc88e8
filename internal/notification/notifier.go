package notification

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sender delivers one push message using a provider access token and returns
// the provider's response body.
type Sender interface {
	Send(ctx context.Context, accessToken string, msg PushMessage) (json.RawMessage, error)
}

func senderName(s Sender) string {
	if v, ok := s.(fmt.Stringer); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", s)
}
