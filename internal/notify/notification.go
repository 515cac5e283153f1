package notify

import "time"

// Notification is a user-facing toast raised for a session
type Notification struct {
	Kind      Kind      `json:"kind"`
	Key       string    `json:"key"`
	MessageID string    `json:"message_id"`
	Text      string    `json:"text"`
	Icon      string    `json:"icon,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Icons used by the client toasts
const (
	IconAudioOn     = "audio_on"
	IconAudioOff    = "audio_off"
	IconVolumeLevel = "volume_level_2"
	IconError       = "error"
)

// New builds a notification for key rendered in locale
func (c *Catalog) New(locale, key, icon string) Notification {
	msg, ok := c.Lookup(key)
	if !ok {
		msg, _ = c.Lookup(GenericError)
	}
	return Notification{
		Kind:      msg.Kind,
		Key:       key,
		MessageID: msg.ID,
		Text:      c.Text(locale, key),
		Icon:      icon,
		Timestamp: time.Now(),
	}
}
