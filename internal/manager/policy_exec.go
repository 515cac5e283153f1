package manager

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/models"
	"audiojoin-manager/internal/notify"
	"audiojoin-manager/internal/policy"
	"audiojoin-manager/internal/prompt"
	"audiojoin-manager/internal/settings"
)

const maxDecisions = 200

// MountResult is what a mount decided
type MountResult struct {
	Plan     policy.Plan         `json:"plan"`
	AutoJoin policy.JoinDecision `json:"auto_join"`
	Session  *models.Session     `json:"session"`
}

// MountSession activates a session and runs the mount-time policies on it.
// Mounting again re-evaluates with the latch left as it is.
func (m *SessionManager) MountSession(sessionID string) (*MountResult, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	result := &MountResult{}
	err = s.loop.call(func() {
		s.audio.Init(m.catalog, s.locale)

		now := time.Now()
		s.mu.Lock()
		s.status = models.SessionStatusMounted
		s.mountedAt = &now
		s.mu.Unlock()
		m.addLogEntry(s, "info", "Session mounted")

		m.enforceLocks(s)

		facts := m.facts(s)
		silent := policy.AutoJoinAtMount(facts)
		plan := policy.Mount(facts)

		m.recordDecision(s, models.TriggerAutoJoin, facts, policy.Plan{
			Join: silent,
			Rule: policy.SilentJoinRule(silent),
		})
		m.silentJoin(s, silent)

		// The prompt is only dropped for a join that actually connected
		if m.config.Audio.PreferSilentBreakoutJoin && s.audio.IsConnected() {
			plan = policy.PreferSilentJoin(plan, silent)
		}
		m.executePlan(s, models.TriggerMount, facts, plan)

		result.Plan = plan
		result.AutoJoin = silent
	})
	if err != nil {
		return nil, err
	}

	result.Session = m.snapshot(s)
	return result, nil
}

// ResolvePrompt answers an open prompt of a session
func (m *SessionManager) ResolvePrompt(sessionID, promptID string, outcome prompt.Outcome) (*models.Prompt, error) {
	if _, err := m.lookup(sessionID); err != nil {
		return nil, err
	}

	p, exists := m.prompts.Get(promptID)
	if !exists {
		return nil, prompt.ErrPromptNotFound
	}
	if p.SessionID != sessionID {
		return nil, fmt.Errorf("%w: %s", ErrPromptMismatch, promptID)
	}

	if _, err := m.prompts.Resolve(promptID, outcome); err != nil {
		return nil, err
	}

	snapshot := p.Snapshot()
	return &snapshot, nil
}

// GetDecisions returns the policy decisions taken for a session
func (m *SessionManager) GetDecisions(sessionID string) ([]models.DecisionRecord, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.DecisionRecord, len(s.decisions))
	copy(result, s.decisions)
	return result, nil
}

// onBreakoutReturn runs when the meeting of a mounted session loses its last
// breakout room. Must run on the session loop.
func (m *SessionManager) onBreakoutReturn(s *sessionState) {
	s.mu.RLock()
	mounted := s.status == models.SessionStatusMounted
	s.mu.RUnlock()
	if !mounted {
		return
	}

	m.addLogEntry(s, "info", "Returned from breakout rooms")

	facts := m.facts(s)
	silent := policy.SilentJoin(facts)
	m.recordDecision(s, models.TriggerRejoin, facts, policy.Plan{
		Join: silent,
		Rule: policy.SilentJoinRule(silent),
	})
	m.silentJoin(s, silent)

	m.executePlan(s, models.TriggerBreakoutReturn, facts, policy.BreakoutReturn(facts))
}

// facts snapshots what the policies look at
func (m *SessionManager) facts(s *sessionState) policy.Facts {
	s.mu.RLock()
	resolved := settings.Resolve(s.userSettings, m.config.Audio.Defaults())
	f := policy.Facts{
		HasBreakoutRooms:       s.hasBreakoutRooms,
		MeetingIsBreakout:      s.breakout,
		UserSelectedMicrophone: s.selections.Microphone,
		UserSelectedListenOnly: s.selections.ListenOnly,
		AutoJoinEnabled:        resolved.AutoJoin,
		CameraAutoShareEnabled: resolved.CameraAutoShare(),
	}
	s.mu.RUnlock()

	f.IsConnectedToAudio = s.audio.IsConnected()
	f.IsUsingAudio = s.audio.IsUsingAudio()
	f.HasAlreadyAutoJoined = s.latch.IsSet()
	return f
}

func (m *SessionManager) recordDecision(s *sessionState, trigger models.DecisionTrigger, facts policy.Facts, plan policy.Plan) {
	record := models.DecisionRecord{
		Trigger:   trigger,
		Facts:     facts,
		Plan:      plan,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.decisions = append(s.decisions, record)
	if len(s.decisions) > maxDecisions {
		s.decisions = s.decisions[len(s.decisions)-maxDecisions:]
	}
	s.mu.Unlock()

	m.mu.Lock()
	m.decisionCounts[plan.Rule]++
	m.mu.Unlock()

	m.addLogEntry(s, "debug", fmt.Sprintf("%s decided %s (%s)", trigger, plan.Join, plan.Rule))
	m.broadcastUpdate(s.id, models.MessageTypeDecision, map[string]interface{}{"decision": record})
}

// executePlan carries out a plan. Must run on the session loop.
func (m *SessionManager) executePlan(s *sessionState, trigger models.DecisionTrigger, facts policy.Facts, plan policy.Plan) {
	m.recordDecision(s, trigger, facts, plan)
	if plan.IsNoop() {
		return
	}

	if plan.Latch == policy.LatchNow {
		s.latch.Set()
	}

	if plan.Deferred {
		// Queue behind whatever else is pending on this session
		s.loop.post(func() { m.runPlan(s, plan) })
		return
	}
	m.runPlan(s, plan)
}

func (m *SessionManager) runPlan(s *sessionState, plan policy.Plan) {
	switch plan.Join {
	case policy.OpenAudioPrompt:
		m.openAudioPrompt(s, plan)
	case policy.JoinMicrophoneSilently, policy.JoinListenOnlySilently:
		m.silentJoin(s, plan.Join)
	}

	if plan.Followup == policy.OpenCameraPrompt && !plan.Chained {
		m.openCameraPrompt(s)
	}
}

func (m *SessionManager) openAudioPrompt(s *sessionState, plan policy.Plan) {
	s.mu.Lock()
	if open := s.audioPrompt; open != nil {
		s.promptFollowers = append(s.promptFollowers, plan)
		s.mu.Unlock()
		m.addLogEntry(s, "info", fmt.Sprintf("Audio prompt %s already open, %s follows it", open.ID, plan.Rule))
		return
	}
	s.mu.Unlock()

	p := m.prompts.Open(s.id, models.PromptKindAudio)
	s.mu.Lock()
	s.audioPrompt = p
	s.mu.Unlock()

	m.addLogEntry(s, "info", fmt.Sprintf("Opened audio prompt %s", p.ID))

	p.Future.Then(s.ctx, func(outcome prompt.Outcome) {
		s.loop.post(func() { m.onAudioPromptDone(s, plan, outcome) })
	})
}

func (m *SessionManager) onAudioPromptDone(s *sessionState, plan policy.Plan, outcome prompt.Outcome) {
	s.mu.Lock()
	s.audioPrompt = nil
	followers := s.promptFollowers
	s.promptFollowers = nil
	switch outcome.Choice {
	case models.PromptChoiceMicrophone:
		s.selections.Microphone = true
	case models.PromptChoiceListenOnly:
		s.selections.ListenOnly = true
	}
	s.mu.Unlock()

	m.addLogEntry(s, "info", fmt.Sprintf("Audio prompt answered: %s", outcome.Choice))

	switch outcome.Choice {
	case models.PromptChoiceMicrophone:
		m.joinAudio(s, policy.JoinMicrophoneSilently, false)
	case models.PromptChoiceListenOnly:
		m.joinAudio(s, policy.JoinListenOnlySilently, false)
	}

	m.afterAudioPrompt(s, plan)
	for _, follower := range followers {
		m.afterAudioPrompt(s, follower)
	}
}

// afterAudioPrompt applies what a plan left for the audio prompt's answer
func (m *SessionManager) afterAudioPrompt(s *sessionState, plan policy.Plan) {
	if plan.Latch == policy.LatchOnPromptCompletion {
		s.latch.Set()
	}
	if plan.Chained && plan.Followup == policy.OpenCameraPrompt && !m.cameraPromptOpen(s) {
		m.openCameraPrompt(s)
	}
}

func (m *SessionManager) cameraPromptOpen(s *sessionState) bool {
	for _, p := range m.prompts.Pending(s.id) {
		if p.Kind == models.PromptKindCamera {
			return true
		}
	}
	return false
}

func (m *SessionManager) openCameraPrompt(s *sessionState) {
	s.mu.RLock()
	webcamLocked := s.locks.Webcam
	s.mu.RUnlock()

	p := m.prompts.Open(s.id, models.PromptKindCamera)
	if webcamLocked {
		if _, err := m.prompts.Resolve(p.ID, prompt.Outcome{Choice: models.PromptChoiceSkipped}); err != nil {
			logrus.WithField("session_id", s.id).Warnf("Failed to skip camera prompt: %v", err)
		}
		m.addLogEntry(s, "info", "Camera prompt skipped, webcam locked")
		return
	}

	m.addLogEntry(s, "info", fmt.Sprintf("Opened camera prompt %s", p.ID))
	p.Future.Then(s.ctx, func(outcome prompt.Outcome) {
		m.addLogEntry(s, "info", fmt.Sprintf("Camera prompt answered: %s", outcome.Choice))
	})
}

// silentJoin connects audio in the given mode without asking. A silent
// microphone join always starts capturing.
func (m *SessionManager) silentJoin(s *sessionState, decision policy.JoinDecision) {
	m.joinAudio(s, decision, true)
}

func (m *SessionManager) joinAudio(s *sessionState, decision policy.JoinDecision, force bool) {
	var err error
	switch decision {
	case policy.JoinMicrophoneSilently:
		err = s.audio.JoinMicrophone(s.ctx, force)
	case policy.JoinListenOnlySilently:
		err = s.audio.JoinListenOnly(s.ctx)
	default:
		return
	}

	if err != nil {
		m.addLogEntry(s, "error", fmt.Sprintf("Failed to %s: %v", decision, err))
		return
	}
	m.enforceLocks(s)
}

// enforceLocks applies the capture constraints and the microphone lock to a
// connected microphone
func (m *SessionManager) enforceLocks(s *sessionState) {
	if !s.audio.IsConnected() || s.audio.IsListenOnly() {
		return
	}

	if err := s.audio.UpdateAudioConstraints(s.ctx, m.config.Audio.MicrophoneConstraints); err != nil {
		m.addLogEntry(s, "warn", fmt.Sprintf("Failed to update audio constraints: %v", err))
	}

	s.mu.RLock()
	micLocked := s.locks.Microphone
	s.mu.RUnlock()

	if !micLocked || s.audio.IsMuted() {
		return
	}

	if err := s.audio.ToggleMuteMicrophone(s.ctx); err != nil {
		m.addLogEntry(s, "error", fmt.Sprintf("Failed to mute locked microphone: %v", err))
		return
	}
	m.notify(s, m.catalog.New(s.locale, notify.ReconnectingAsListener, notify.IconVolumeLevel))
}

// Evaluation is every policy evaluated against one set of facts
type Evaluation struct {
	Mount            policy.Plan         `json:"mount"`
	AutoJoin         policy.JoinDecision `json:"auto_join"`
	IsBreakoutReturn bool                `json:"is_breakout_return"`
	SilentJoin       policy.JoinDecision `json:"silent_join"`
	BreakoutReturn   policy.Plan         `json:"breakout_return"`
}

// Evaluate runs the policies on caller supplied facts without touching any
// session. hadBreakoutRooms is the membership before the facts were taken.
func (m *SessionManager) Evaluate(facts policy.Facts, hadBreakoutRooms bool) Evaluation {
	silent := policy.AutoJoinAtMount(facts)
	mount := policy.Mount(facts)
	if m.config.Audio.PreferSilentBreakoutJoin {
		mount = policy.PreferSilentJoin(mount, silent)
	}

	return Evaluation{
		Mount:            mount,
		AutoJoin:         silent,
		IsBreakoutReturn: policy.IsBreakoutReturn(hadBreakoutRooms, facts.HasBreakoutRooms),
		SilentJoin:       policy.SilentJoin(facts),
		BreakoutReturn:   policy.BreakoutReturn(facts),
	}
}
