// Package command defines the tagged-union message the engine is
// driven by, plus the Issuer/Transaction/Commander plumbing used to
// build and deliver it. Grounded on engine.rs's privacy_hack::EngineCommand
// enum and its EngineCommandIssuer/EngineCommands traits.
package command

import (
	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/query"
	"github.com/cbegin/secondmusic-go/internal/son"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
)

// Kind discriminates the payload fields a Command actually uses. The
// enum's ~30 struct variants are folded into one struct with a Kind
// tag, the same shape the teacher's player.go gives its PlaybackEvent
// for its own small tagged union.
type Kind int

const (
	KindTransaction Kind = iota
	KindReplaceSoundtrack
	KindPrecache
	KindUnprecache
	KindUnprecacheAll
	KindSetFlowControl
	KindClearFlowControl
	KindClearPrefixedFlowControls
	KindClearAllFlowControls
	KindFadeMixControlTo
	KindFadePrefixedMixControlsTo
	KindFadeAllMixControlsTo
	KindFadeAllMixControlsExceptMainTo
	KindFadeMixControlOut
	KindFadePrefixedMixControlsOut
	KindFadeAllMixControlsOut
	KindFadeAllMixControlsExceptMainOut
	KindKillMixControl
	KindKillPrefixedMixControls
	KindKillAllMixControls
	KindKillAllMixControlsExceptMain
	KindStartFlow
	KindFadeFlowTo
	KindFadePrefixedFlowsTo
	KindFadeAllFlowsTo
	KindFadeFlowOut
	KindFadePrefixedFlowsOut
	KindFadeAllFlowsOut
	KindKillFlow
	KindKillPrefixedFlows
	KindKillAllFlows
	KindQueryIsFlowActive
	KindQueryFlowControl
	KindQueryMixControl
)

// Command is one instruction for the engine. Only the fields relevant
// to Kind are populated; the rest sit at their zero value.
type Command struct {
	Kind Kind

	// KindTransaction
	Commands []Command

	// KindReplaceSoundtrack
	NewSoundtrack *soundtrack.Soundtrack

	// KindPrecache, KindUnprecache, KindStartFlow, KindFadeFlowTo,
	// KindFadeFlowOut, KindKillFlow
	FlowName string

	// KindFadePrefixedFlowsTo, KindFadePrefixedFlowsOut,
	// KindKillPrefixedFlows, KindFadePrefixedMixControlsTo,
	// KindFadePrefixedMixControlsOut, KindKillPrefixedMixControls,
	// KindClearPrefixedFlowControls
	Prefix string

	// KindSetFlowControl, KindClearFlowControl, KindFadeMixControlTo,
	// KindKillMixControl, KindFadeMixControlOut
	ControlName string

	// KindSetFlowControl
	NewValue son.SoN

	// Fade* commands that ramp to a volume
	FadeType     fader.Curve
	TargetVolume posfloat.PosFloat
	FadeLength   posfloat.PosFloat

	// KindQueryIsFlowActive. FlowName is reused to name the flow.
	FlowActiveResponder *query.Responder[bool]

	// KindQueryFlowControl. ControlName is reused to name the control.
	FlowControlResponder *query.Responder[*son.SoN]

	// KindQueryMixControl. ControlName is reused to name the control.
	MixControlResponder *query.Responder[*posfloat.PosFloat]
}
