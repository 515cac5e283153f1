package policy

import "fmt"

// JoinDecision represents the audio action a policy evaluation produced
type JoinDecision int

const (
	JoinNone JoinDecision = iota
	OpenAudioPrompt
	JoinMicrophoneSilently
	JoinListenOnlySilently
)

var joinDecisionNames = map[JoinDecision]string{
	JoinNone:               "none",
	OpenAudioPrompt:        "open_audio_prompt",
	JoinMicrophoneSilently: "join_microphone",
	JoinListenOnlySilently: "join_listen_only",
}

func (d JoinDecision) String() string {
	if name, ok := joinDecisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("join_decision(%d)", int(d))
}

// MarshalText implements encoding.TextMarshaler
func (d JoinDecision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *JoinDecision) UnmarshalText(text []byte) error {
	for decision, name := range joinDecisionNames {
		if name == string(text) {
			*d = decision
			return nil
		}
	}
	return fmt.Errorf("unknown join decision %q", string(text))
}

// IsSilentJoin reports whether the decision joins audio without a prompt
func (d JoinDecision) IsSilentJoin() bool {
	return d == JoinMicrophoneSilently || d == JoinListenOnlySilently
}

// FollowupDecision represents the camera action that may follow audio setup
type FollowupDecision int

const (
	FollowupNone FollowupDecision = iota
	OpenCameraPrompt
)

func (d FollowupDecision) String() string {
	switch d {
	case FollowupNone:
		return "none"
	case OpenCameraPrompt:
		return "open_camera_prompt"
	default:
		return fmt.Sprintf("followup_decision(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler
func (d FollowupDecision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *FollowupDecision) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*d = FollowupNone
	case "open_camera_prompt":
		*d = OpenCameraPrompt
	default:
		return fmt.Errorf("unknown followup decision %q", string(text))
	}
	return nil
}

// LatchTiming says when an evaluation sets the session's auto-join latch
type LatchTiming int

const (
	LatchUntouched LatchTiming = iota
	LatchNow
	LatchOnPromptCompletion
)

func (t LatchTiming) String() string {
	switch t {
	case LatchNow:
		return "now"
	case LatchOnPromptCompletion:
		return "on_prompt_completion"
	default:
		return "untouched"
	}
}

// MarshalText implements encoding.TextMarshaler
func (t LatchTiming) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *LatchTiming) UnmarshalText(text []byte) error {
	switch string(text) {
	case "untouched":
		*t = LatchUntouched
	case "now":
		*t = LatchNow
	case "on_prompt_completion":
		*t = LatchOnPromptCompletion
	default:
		return fmt.Errorf("unknown latch timing %q", string(text))
	}
	return nil
}

// Plan is the complete outcome of a single policy evaluation.
//
// When Chained is set, Followup waits for the audio prompt's outcome;
// otherwise Followup fires immediately. Deferred asks the executor to yield
// once before acting on Join.
type Plan struct {
	Join     JoinDecision     `json:"join"`
	Followup FollowupDecision `json:"followup"`
	Chained  bool             `json:"chained"`
	Latch    LatchTiming      `json:"latch"`
	Deferred bool             `json:"deferred"`
	Rule     string           `json:"rule"`
}

// IsNoop reports whether executing the plan would do nothing
func (p Plan) IsNoop() bool {
	return p.Join == JoinNone && p.Followup == FollowupNone && p.Latch == LatchUntouched
}
