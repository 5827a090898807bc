package command

import (
	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/query"
	"github.com/cbegin/secondmusic-go/internal/son"
	"github.com/cbegin/secondmusic-go/internal/soundtrack"
)

// Issuer accepts commands, either delivering them directly or
// batching them into a Transaction. Grounded on EngineCommandIssuer.
type Issuer interface {
	Issue(cmd Command)
}

// Issuers is the ergonomic builder surface every Issuer gets for
// free: one method per command kind, mirroring the original's
// EngineCommands trait. Engine, Commander, and *Transaction all
// implement Issuer and so all get these methods via embedding.
type Issuers struct {
	Issuer
}

// BeginTransaction starts a batch of commands that will be delivered
// to the parent issuer atomically, in order, when Commit is called.
// length is an optional capacity hint.
func BeginTransaction(parent Issuer, length int) *Transaction {
	var commands []Command
	if length > 0 {
		commands = make([]Command, 0, length)
	}
	t := &Transaction{parent: parent, commands: commands}
	t.Issuers = Issuers{Issuer: t}
	return t
}

// BeginTransaction starts a child transaction nested inside t: its
// Commit appends a single Command{Kind: KindTransaction} to t's own
// buffer rather than delivering anything immediately.
func (t *Transaction) BeginTransaction(length int) *Transaction {
	return BeginTransaction(t, length)
}

// ReplaceSoundtrack replaces the active soundtrack. Currently-active
// nodes, sequences, and sounds play to their conclusion.
func (is Issuers) ReplaceSoundtrack(newSoundtrack *soundtrack.Soundtrack) {
	is.Issue(Command{Kind: KindReplaceSoundtrack, NewSoundtrack: newSoundtrack})
}

// Precache requests that a flow be preloaded in the background. Not
// recursive: calling it twice then Unprecache once leaves it
// unprecached.
func (is Issuers) Precache(flowName string) {
	is.Issue(Command{Kind: KindPrecache, FlowName: flowName})
}

// Unprecache undoes a previous Precache.
func (is Issuers) Unprecache(flowName string) {
	is.Issue(Command{Kind: KindUnprecache, FlowName: flowName})
}

// UnprecacheAll undoes every previous Precache request.
func (is Issuers) UnprecacheAll() {
	is.Issue(Command{Kind: KindUnprecacheAll})
}

// SetFlowControl sets a flow control to a value.
func (is Issuers) SetFlowControl(controlName string, newValue son.SoN) {
	is.Issue(Command{Kind: KindSetFlowControl, ControlName: controlName, NewValue: newValue})
}

// ClearFlowControl removes a flow control's value.
func (is Issuers) ClearFlowControl(controlName string) {
	is.Issue(Command{Kind: KindClearFlowControl, ControlName: controlName})
}

// ClearPrefixedFlowControls clears every flow control whose name
// strictly starts with prefix.
func (is Issuers) ClearPrefixedFlowControls(prefix string) {
	is.Issue(Command{Kind: KindClearPrefixedFlowControls, Prefix: prefix})
}

// ClearAllFlowControls clears every flow control.
func (is Issuers) ClearAllFlowControls() {
	is.Issue(Command{Kind: KindClearAllFlowControls})
}

// FadeMixControlTo fades a mix control to targetVolume over
// fadeLength seconds along curve.
func (is Issuers) FadeMixControlTo(controlName string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeMixControlTo, ControlName: controlName, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadePrefixedMixControlsTo fades every currently existing mix
// control whose name strictly starts with prefix.
func (is Issuers) FadePrefixedMixControlsTo(prefix string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadePrefixedMixControlsTo, Prefix: prefix, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadeAllMixControlsTo fades every currently existing mix control,
// including main.
func (is Issuers) FadeAllMixControlsTo(targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeAllMixControlsTo, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadeAllMixControlsExceptMainTo fades every currently existing mix
// control except main.
func (is Issuers) FadeAllMixControlsExceptMainTo(targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeAllMixControlsExceptMainTo, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadeMixControlOut fades a mix control to zero, then removes it.
func (is Issuers) FadeMixControlOut(controlName string, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeMixControlOut, ControlName: controlName, FadeType: curve, FadeLength: fadeLength})
}

// FadePrefixedMixControlsOut fades out every mix control whose name
// strictly starts with prefix.
func (is Issuers) FadePrefixedMixControlsOut(prefix string, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadePrefixedMixControlsOut, Prefix: prefix, FadeType: curve, FadeLength: fadeLength})
}

// FadeAllMixControlsOut fades out every mix control, including main.
func (is Issuers) FadeAllMixControlsOut(fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeAllMixControlsOut, FadeType: curve, FadeLength: fadeLength})
}

// FadeAllMixControlsExceptMainOut fades out every mix control except
// main.
func (is Issuers) FadeAllMixControlsExceptMainOut(fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeAllMixControlsExceptMainOut, FadeType: curve, FadeLength: fadeLength})
}

// KillMixControl removes a mix control instantly.
func (is Issuers) KillMixControl(controlName string) {
	is.Issue(Command{Kind: KindKillMixControl, ControlName: controlName})
}

// KillPrefixedMixControls removes every mix control whose name
// strictly starts with prefix, instantly.
func (is Issuers) KillPrefixedMixControls(prefix string) {
	is.Issue(Command{Kind: KindKillPrefixedMixControls, Prefix: prefix})
}

// KillAllMixControls removes every mix control, including main,
// instantly.
func (is Issuers) KillAllMixControls() {
	is.Issue(Command{Kind: KindKillAllMixControls})
}

// KillAllMixControlsExceptMain removes every mix control except
// main, instantly.
func (is Issuers) KillAllMixControlsExceptMain() {
	is.Issue(Command{Kind: KindKillAllMixControlsExceptMain})
}

// StartFlow starts a flow if it isn't already playing, fading it up
// from zero to targetVolume. If it's already playing, behaves like
// FadeFlowTo.
func (is Issuers) StartFlow(flowName string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindStartFlow, FlowName: flowName, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadeFlowTo fades a currently playing flow to targetVolume. No-op
// if the flow isn't playing.
func (is Issuers) FadeFlowTo(flowName string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeFlowTo, FlowName: flowName, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadePrefixedFlowsTo fades every currently playing flow whose name
// strictly starts with prefix.
func (is Issuers) FadePrefixedFlowsTo(prefix string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadePrefixedFlowsTo, Prefix: prefix, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadeAllFlowsTo fades every currently playing flow to targetVolume.
func (is Issuers) FadeAllFlowsTo(targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeAllFlowsTo, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength})
}

// FadeFlowOut fades a currently playing flow to zero, then stops it.
func (is Issuers) FadeFlowOut(flowName string, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeFlowOut, FlowName: flowName, FadeType: curve, FadeLength: fadeLength})
}

// FadePrefixedFlowsOut fades out every currently playing flow whose
// name strictly starts with prefix.
func (is Issuers) FadePrefixedFlowsOut(prefix string, fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadePrefixedFlowsOut, Prefix: prefix, FadeType: curve, FadeLength: fadeLength})
}

// FadeAllFlowsOut fades out every currently playing flow.
func (is Issuers) FadeAllFlowsOut(fadeLength posfloat.PosFloat, curve fader.Curve) {
	is.Issue(Command{Kind: KindFadeAllFlowsOut, FadeType: curve, FadeLength: fadeLength})
}

// KillFlow stops a flow instantly, as opposed to fading it out.
func (is Issuers) KillFlow(flowName string) {
	is.Issue(Command{Kind: KindKillFlow, FlowName: flowName})
}

// KillPrefixedFlows stops every currently playing flow whose name
// strictly starts with prefix, instantly.
func (is Issuers) KillPrefixedFlows(prefix string) {
	is.Issue(Command{Kind: KindKillPrefixedFlows, Prefix: prefix})
}

// KillAllFlows stops every currently playing flow instantly.
func (is Issuers) KillAllFlows() {
	is.Issue(Command{Kind: KindKillAllFlows})
}

// QueryIsFlowActive asks whether flowName is currently playing
// (started and not yet killed/faded out), answered on the engine
// thread the next time the returned future's command is processed.
func (is Issuers) QueryIsFlowActive(flowName string) *query.BoolFuture {
	responder, future := query.NewBoolFuture()
	is.Issue(Command{Kind: KindQueryIsFlowActive, FlowName: flowName, FlowActiveResponder: responder})
	return future
}

// QueryFlowControl reads a flow control's current value. The future
// resolves to a nil *son.SoN if the control is unset.
func (is Issuers) QueryFlowControl(controlName string) *query.FlowControlFuture {
	responder, future := query.NewFlowControlFuture()
	is.Issue(Command{Kind: KindQueryFlowControl, ControlName: controlName, FlowControlResponder: responder})
	return future
}

// QueryMixControl reads a mix control's current volume. The future
// resolves to a nil *posfloat.PosFloat if the control doesn't exist.
func (is Issuers) QueryMixControl(controlName string) *query.MixControlFuture {
	responder, future := query.NewMixControlFuture()
	is.Issue(Command{Kind: KindQueryMixControl, ControlName: controlName, MixControlResponder: responder})
	return future
}
