package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const DefaultFCMEndpoint = "https://fcm.googleapis.com"

// SendError is a per-recipient failure reported by the FCM API.
type SendError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *SendError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return "FCM API error: " + msg
}

type fcmErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FirebaseNotifier sends messages through the FCM HTTP v1 API.
type FirebaseNotifier struct {
	endpoint   string
	projectID  string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewFirebaseNotifier(endpoint, projectID string, logger zerolog.Logger) *FirebaseNotifier {
	if endpoint == "" {
		endpoint = DefaultFCMEndpoint
	}
	return &FirebaseNotifier{
		endpoint:   strings.TrimRight(endpoint, "/"),
		projectID:  projectID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("notifier", "firebase").Logger(),
	}
}

func (n *FirebaseNotifier) sendURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/messages:send", n.endpoint, n.projectID)
}

func (n *FirebaseNotifier) Send(ctx context.Context, accessToken string, msg PushMessage) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]PushMessage{"message": msg})
	if err != nil {
		return nil, errors.Wrap(err, "marshal push message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.sendURL(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build fcm request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fcm request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read fcm response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sendErr := &SendError{StatusCode: resp.StatusCode}
		var parsed fcmErrorBody
		if json.Unmarshal(respBody, &parsed) == nil {
			sendErr.Message = parsed.Error.Message
			sendErr.Status = parsed.Error.Status
		}
		n.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("fcm_status", sendErr.Status).
			Str("fcm_message", sendErr.Message).
			Msg("fcm rejected message")
		return nil, sendErr
	}

	if !json.Valid(respBody) {
		return nil, errors.New("fcm returned a non-JSON success body")
	}
	return json.RawMessage(respBody), nil
}

func (n *FirebaseNotifier) String() string {
	return fmt.Sprintf("FirebaseNotifier(project=%s)", n.projectID)
}
