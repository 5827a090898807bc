package command

import (
	"github.com/cbegin/secondmusic-go/internal/fader"
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/son"
)

// Free-standing Command constructors, for building a Command value to
// hand straight to an Issuer or to assert against in a test, without
// spelling out every struct field. The original's din package plays
// the same "don't make the caller write out a struct literal" role
// for soundtrack-file nodes; these play it for Command values.

// StartFlow builds a KindStartFlow command.
func StartFlow(flowName string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) Command {
	return Command{Kind: KindStartFlow, FlowName: flowName, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength}
}

// FadeFlowTo builds a KindFadeFlowTo command.
func FadeFlowTo(flowName string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) Command {
	return Command{Kind: KindFadeFlowTo, FlowName: flowName, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength}
}

// FadeFlowOut builds a KindFadeFlowOut command.
func FadeFlowOut(flowName string, fadeLength posfloat.PosFloat, curve fader.Curve) Command {
	return Command{Kind: KindFadeFlowOut, FlowName: flowName, FadeType: curve, FadeLength: fadeLength}
}

// KillFlow builds a KindKillFlow command.
func KillFlow(flowName string) Command {
	return Command{Kind: KindKillFlow, FlowName: flowName}
}

// SetControl builds a KindSetFlowControl command.
func SetControl(controlName string, newValue son.SoN) Command {
	return Command{Kind: KindSetFlowControl, ControlName: controlName, NewValue: newValue}
}

// ClearControl builds a KindClearFlowControl command.
func ClearControl(controlName string) Command {
	return Command{Kind: KindClearFlowControl, ControlName: controlName}
}

// FadeMixTo builds a KindFadeMixControlTo command.
func FadeMixTo(controlName string, targetVolume, fadeLength posfloat.PosFloat, curve fader.Curve) Command {
	return Command{Kind: KindFadeMixControlTo, ControlName: controlName, FadeType: curve, TargetVolume: targetVolume, FadeLength: fadeLength}
}

// FadeMixOut builds a KindFadeMixControlOut command.
func FadeMixOut(controlName string, fadeLength posfloat.PosFloat, curve fader.Curve) Command {
	return Command{Kind: KindFadeMixControlOut, ControlName: controlName, FadeType: curve, FadeLength: fadeLength}
}

// KillMix builds a KindKillMixControl command.
func KillMix(controlName string) Command {
	return Command{Kind: KindKillMixControl, ControlName: controlName}
}

// KillAllFlows builds a KindKillAllFlows command.
func KillAllFlows() Command {
	return Command{Kind: KindKillAllFlows}
}

// Batch builds a KindTransaction command wrapping cmds, for handing a
// whole batch to an Issuer without opening a live Transaction.
func Batch(cmds ...Command) Command {
	return Command{Kind: KindTransaction, Commands: cmds}
}
