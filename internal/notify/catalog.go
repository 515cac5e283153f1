package notify

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Kind is the severity of a notification
type Kind string

const (
	KindInfo  Kind = "info"
	KindError Kind = "error"
)

// Info keys reported by the audio service
const (
	JoinedAudio       = "JOINED_AUDIO"
	JoinedEcho        = "JOINED_ECHO"
	LeftAudio         = "LEFT_AUDIO"
	ReconnectingAudio = "RECONNECTING_AUDIO"
)

// Error keys reported by the audio service
const (
	GenericError       = "GENERIC_ERROR"
	ConnectionError    = "CONNECTION_ERROR"
	RequestTimeout     = "REQUEST_TIMEOUT"
	InvalidTarget      = "INVALID_TARGET"
	MediaError         = "MEDIA_ERROR"
	WebRTCNotSupported = "WEBRTC_NOT_SUPPORTED"
)

// ReconnectingAsListener is raised when a mic lock forces listen-only
const ReconnectingAsListener = "RECONNECTING_AS_LISTENER"

// WebRTC failure codes reported by the audio bridge
const (
	FirstWebRTCCode = 1001
	LastWebRTCCode  = 1010
)

// Message is one entry in the catalog
type Message struct {
	ID   string
	Kind Kind
	Text string
}

var messages = map[string]Message{
	JoinedAudio:       {"app.audioManager.joinedAudio", KindInfo, "You have joined the audio conference"},
	JoinedEcho:        {"app.audioManager.joinedEcho", KindInfo, "You have joined the echo test"},
	LeftAudio:         {"app.audioManager.leftAudio", KindInfo, "You have left the audio conference"},
	ReconnectingAudio: {"app.audioManager.reconnectingAudio", KindInfo, "Attempting to reconnect audio"},

	GenericError:       {"app.audioManager.genericError", KindError, "Error: An error has occurred, please try again"},
	ConnectionError:    {"app.audioManager.connectionError", KindError, "Error: Connection error"},
	RequestTimeout:     {"app.audioManager.requestTimeout", KindError, "Error: There was a timeout in the request"},
	InvalidTarget:      {"app.audioManager.invalidTarget", KindError, "Error: Tried to request something to an invalid target"},
	MediaError:         {"app.audioManager.mediaError", KindError, "Error: There was an issue getting your media devices"},
	WebRTCNotSupported: {"app.audioNotification.audioFailedError1003", KindError, "Browser version not supported (error 1003)"},

	ReconnectingAsListener: {"app.audioNotificaion.reconnectingAsListenOnly", KindInfo, "Moderator has locked viewers microphone, you are being connected as listen only"},
}

var webRTCTexts = map[int]string{
	1001: "WebSocket disconnected (error 1001)",
	1002: "Could not make a WebSocket connection (error 1002)",
	1003: "Browser version not supported (error 1003)",
	1004: "Failure on call (reason={0}) (error 1004)",
	1005: "Call ended unexpectedly (error 1005)",
	1006: "Call timed out (error 1006)",
	1007: "ICE negotiation failed (error 1007)",
	1008: "Transfer failed (error 1008)",
	1009: "Could not fetch STUN/TURN server information (error 1009)",
	1010: "ICE negotiation timeout (error 1010)",
}

func init() {
	for code := FirstWebRTCCode; code <= LastWebRTCCode; code++ {
		messages[WebRTCKey(code)] = Message{
			ID:   fmt.Sprintf("app.audioNotification.audioFailedError%d", code),
			Kind: KindError,
			Text: webRTCTexts[code],
		}
	}
}

// WebRTCKey returns the catalog key for a numeric WebRTC failure code
func WebRTCKey(code int) string {
	return fmt.Sprintf("%d", code)
}

// IsWebRTCCode reports whether code is one of the known WebRTC failures
func IsWebRTCCode(code int) bool {
	return code >= FirstWebRTCCode && code <= LastWebRTCCode
}

// Catalog resolves notification keys to localized text
type Catalog struct {
	builder *catalog.Builder
}

// NewCatalog builds the catalog with English text. Other locales fall back
// to English until translations are registered with Register.
func NewCatalog() *Catalog {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, msg := range messages {
		if err := builder.SetString(language.English, msg.ID, msg.Text); err != nil {
			logrus.Warnf("Failed to register message %s: %v", msg.ID, err)
		}
	}
	return &Catalog{builder: builder}
}

// Register adds a translation for a message ID
func (c *Catalog) Register(tag language.Tag, messageID, text string) error {
	if err := c.builder.SetString(tag, messageID, text); err != nil {
		return fmt.Errorf("failed to register %s for %s: %w", messageID, tag, err)
	}
	return nil
}

// Lookup returns the catalog entry for key
func (c *Catalog) Lookup(key string) (Message, bool) {
	msg, ok := messages[key]
	return msg, ok
}

// Text renders key in the given locale. Unknown keys render as the generic
// error text.
func (c *Catalog) Text(locale, key string) string {
	msg, ok := messages[key]
	if !ok {
		msg = messages[GenericError]
	}

	printer := message.NewPrinter(c.match(locale), message.Catalog(c.builder))
	return printer.Sprintf(msg.ID)
}

// match picks the registered language closest to locale
func (c *Catalog) match(locale string) language.Tag {
	requested, err := language.Parse(locale)
	if err != nil {
		return language.English
	}

	supported := c.builder.Languages()
	if len(supported) == 0 {
		return language.English
	}

	_, index, confidence := language.NewMatcher(supported).Match(requested)
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}
