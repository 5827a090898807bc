package query

import (
	"github.com/cbegin/secondmusic-go/internal/posfloat"
	"github.com/cbegin/secondmusic-go/internal/son"
)

// BoolFuture answers a yes/no query — the original's
// boolean_response.rs, where a bound C caller just wants poll()/get()
// on a query::Response<bool>.
type BoolFuture = Future[bool]

// NewBoolFuture starts a boolean query.
func NewBoolFuture() (*Responder[bool], *BoolFuture) { return New[bool]() }

// FlowControlFuture answers a flow-control read — the original's
// flow_control_response.rs, a query::Response<Option<StringOrNumber>>.
// A nil *son.SoN means the control was unset.
type FlowControlFuture = Future[*son.SoN]

// NewFlowControlFuture starts a flow-control-read query.
func NewFlowControlFuture() (*Responder[*son.SoN], *FlowControlFuture) { return New[*son.SoN]() }

// MixControlFuture answers a mix-control read — the original's
// mix_control_response.rs, a query::Response<Option<PosFloat>>. A nil
// *posfloat.PosFloat means the control was unset.
type MixControlFuture = Future[*posfloat.PosFloat]

// NewMixControlFuture starts a mix-control-read query.
func NewMixControlFuture() (*Responder[*posfloat.PosFloat], *MixControlFuture) {
	return New[*posfloat.PosFloat]()
}
