// Package policy decides, from a snapshot of session facts, whether a user
// should be prompted for audio setup, silently joined to audio, or offered
// the camera preview after audio setup.
//
// Every function here is pure. Executing a Plan, owning the latch and
// talking to the audio service is the session manager's job.
package policy

// Facts is a read-only snapshot of everything the join policy looks at
type Facts struct {
	HasBreakoutRooms       bool `json:"has_breakout_rooms"`
	MeetingIsBreakout      bool `json:"meeting_is_breakout"`
	UserSelectedMicrophone bool `json:"user_selected_microphone"`
	UserSelectedListenOnly bool `json:"user_selected_listen_only"`
	IsConnectedToAudio     bool `json:"is_connected_to_audio"`
	IsUsingAudio           bool `json:"is_using_audio"`
	AutoJoinEnabled        bool `json:"auto_join_enabled"`
	CameraAutoShareEnabled bool `json:"camera_auto_share_enabled"`
	HasAlreadyAutoJoined   bool `json:"has_already_auto_joined"`
}

// Rule names recorded on plans
const (
	RuleMountSkip           = "mount.skip"
	RuleMountCameraChain    = "mount.camera_chain"
	RuleMountPrompt         = "mount.prompt"
	RuleMountSuppressed     = "mount.suppressed"
	RuleMountSuperseded     = "mount.superseded_by_silent_join"
	RuleReturnAlreadyJoined = "breakout_return.already_joined"
	RuleReturnPrompt        = "breakout_return.prompt"
	RuleAutoJoinMicrophone  = "auto_join.microphone"
	RuleAutoJoinListenOnly  = "auto_join.listen_only"
	RuleAutoJoinNone        = "auto_join.none"
)

func (f Facts) cameraFollowup() FollowupDecision {
	if f.CameraAutoShareEnabled {
		return OpenCameraPrompt
	}
	return FollowupNone
}

// Mount evaluates the policy that runs when a session is activated
func Mount(f Facts) Plan {
	if !f.AutoJoinEnabled || f.HasAlreadyAutoJoined {
		return Plan{
			Join:     JoinNone,
			Followup: f.cameraFollowup(),
			Rule:     RuleMountSkip,
		}
	}

	if f.CameraAutoShareEnabled {
		return Plan{
			Join:     OpenAudioPrompt,
			Followup: OpenCameraPrompt,
			Chained:  true,
			Latch:    LatchOnPromptCompletion,
			Rule:     RuleMountCameraChain,
		}
	}

	// A breakout user who picked both modes before is rejoined silently
	if !(f.UserSelectedMicrophone && f.UserSelectedListenOnly && f.MeetingIsBreakout) {
		return Plan{
			Join:  OpenAudioPrompt,
			Latch: LatchNow,
			Rule:  RuleMountPrompt,
		}
	}

	return Plan{Join: JoinNone, Rule: RuleMountSuppressed}
}

// PreferSilentJoin reconciles a mount plan with the silent join decided for
// the same mount. When the silent join fires, the audio prompt is dropped,
// the latch is set and any camera followup fires right away.
func PreferSilentJoin(mount Plan, silent JoinDecision) Plan {
	if !silent.IsSilentJoin() || mount.Join != OpenAudioPrompt {
		return mount
	}
	return Plan{
		Join:     JoinNone,
		Followup: mount.Followup,
		Latch:    LatchNow,
		Rule:     RuleMountSuperseded,
	}
}

// BreakoutReturn evaluates the policy that runs when the user comes back to
// the main session after breakout rooms end
func BreakoutReturn(f Facts) Plan {
	if f.IsUsingAudio || f.UserSelectedMicrophone || f.UserSelectedListenOnly {
		return Plan{
			Join:     JoinNone,
			Followup: f.cameraFollowup(),
			Rule:     RuleReturnAlreadyJoined,
		}
	}

	followup := f.cameraFollowup()
	return Plan{
		Join:     OpenAudioPrompt,
		Followup: followup,
		Chained:  followup != FollowupNone,
		Deferred: true,
		Rule:     RuleReturnPrompt,
	}
}

// AutoJoinAtMount decides the silent join for a session that is itself a
// breakout room and is not yet using audio
func AutoJoinAtMount(f Facts) JoinDecision {
	if !f.MeetingIsBreakout || f.IsUsingAudio {
		return JoinNone
	}
	return SilentJoin(f)
}

// SilentJoin rejoins audio in the mode the user picked earlier. Nothing
// happens when audio is already connected or no mode was ever picked.
func SilentJoin(f Facts) JoinDecision {
	if f.IsConnectedToAudio {
		return JoinNone
	}
	if f.UserSelectedMicrophone {
		return JoinMicrophoneSilently
	}
	if f.UserSelectedListenOnly {
		return JoinListenOnlySilently
	}
	return JoinNone
}

// SilentJoinRule names the rule behind a silent join decision
func SilentJoinRule(d JoinDecision) string {
	switch d {
	case JoinMicrophoneSilently:
		return RuleAutoJoinMicrophone
	case JoinListenOnlySilently:
		return RuleAutoJoinListenOnly
	default:
		return RuleAutoJoinNone
	}
}

// IsBreakoutReturn reports whether breakout membership went from some rooms
// to none
func IsBreakoutReturn(hadBreakoutRooms, hasBreakoutRooms bool) bool {
	return hadBreakoutRooms && !hasBreakoutRooms
}
