package models

type ChatRoom struct {
	ID           string   `json:"id" db:"id"`
	Participants []string `json:"participants" db:"participants"`
	IsGroup      bool     `json:"is_group" db:"is_group"`
	Name         *string  `json:"name,omitempty" db:"name"`
}

// DisplayName returns the room name, or an empty string for unnamed rooms.
func (r ChatRoom) DisplayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}
