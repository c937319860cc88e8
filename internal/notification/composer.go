package notification

import (
	"fmt"
	"strconv"

	"github.com/stanstork/chatpush/internal/models"
)

// Values the mobile client registers for chat notifications.
const (
	FallbackTitle       = "New Message"
	ChatMessageType     = "chat_message"
	AndroidPriorityHigh = "HIGH"
	AndroidClickAction  = "FLUTTER_NOTIFICATION_CLICK"
	AndroidChannelID    = "high_importance_channel"
	DefaultSound        = "default"
)

// PushMessage is an FCM v1 message addressed to a single device token.
type PushMessage struct {
	Token        string            `json:"token"`
	Notification PushNotification  `json:"notification"`
	Android      AndroidConfig     `json:"android"`
	Data         map[string]string `json:"data"`
}

type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type AndroidConfig struct {
	Priority     string              `json:"priority"`
	Notification AndroidNotification `json:"notification"`
}

type AndroidNotification struct {
	ClickAction string `json:"click_action"`
	ChannelID   string `json:"channel_id"`
	Sound       string `json:"sound"`
}

// Compose builds the push message for one recipient token. FCM only accepts
// string values in the data block, so every field is formatted as text.
func Compose(msg models.Message, sender models.Profile, room models.ChatRoom, token string) PushMessage {
	return PushMessage{
		Token: token,
		Notification: PushNotification{
			Title: composeTitle(sender, room),
			Body:  msg.Content,
		},
		Android: AndroidConfig{
			Priority: AndroidPriorityHigh,
			Notification: AndroidNotification{
				ClickAction: AndroidClickAction,
				ChannelID:   AndroidChannelID,
				Sound:       DefaultSound,
			},
		},
		Data: map[string]string{
			"messageId": strconv.FormatInt(msg.ID, 10),
			"roomId":    msg.RoomID,
			"senderId":  msg.UserID,
			"type":      ChatMessageType,
			"isGroup":   strconv.FormatBool(room.IsGroup),
			"roomName":  room.DisplayName(),
		},
	}
}

func composeTitle(sender models.Profile, room models.ChatRoom) string {
	if room.IsGroup {
		return fmt.Sprintf("%s (%s)", sender.Username, room.DisplayName())
	}
	if sender.Username == "" {
		return FallbackTitle
	}
	return sender.Username
}
