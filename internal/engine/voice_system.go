package engine

import (
	"context"

	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

// VoiceSystem manages the mute schedule.
// Night mutes everyone, day unmutes the living; the dead stay muted until the match ends.
type VoiceSystem struct {
	state  *GameState
	voice  VoiceControl
	out    *outbox
	logger *logger.Logger
}

// NewVoiceSystem creates a voice manager that delivers through out.
func NewVoiceSystem(state *GameState, voice VoiceControl, out *outbox, log *logger.Logger) *VoiceSystem {
	return &VoiceSystem{state: state, voice: voice, out: out, logger: log}
}

// MuteAll closes every microphone for the night.
func (vs *VoiceSystem) MuteAll() {
	vs.logger.Debug("muting all players")
	for _, p := range vs.state.All() {
		vs.set(p.ID, true)
	}
}

// UnmuteLiving opens the microphones of the living.
func (vs *VoiceSystem) UnmuteLiving() {
	for _, p := range vs.state.All() {
		vs.set(p.ID, !p.Alive)
	}
}

// UnmuteAll opens every microphone. Used when the match ends.
func (vs *VoiceSystem) UnmuteAll() {
	for _, p := range vs.state.All() {
		vs.set(p.ID, false)
	}
}

// Mute closes one microphone.
func (vs *VoiceSystem) Mute(playerID string) {
	vs.set(playerID, true)
}

func (vs *VoiceSystem) set(playerID string, muted bool) {
	voice, log := vs.voice, vs.logger
	vs.out.send(func(ctx context.Context) {
		if err := voice.SetMuted(ctx, playerID, muted); err != nil {
			log.Err("failed to set mute for "+playerID, err)
		}
	})
}
