package models

type Profile struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	FCMToken string `json:"fcm_token,omitempty" db:"fcm_token"`
}

// Recipient is a profile that can be reached by push.
type Recipient struct {
	ProfileID string `json:"profile_id"`
	Username  string `json:"username"`
	Token     string `json:"-"`
}
