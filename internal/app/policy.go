package app

import "github.com/dkeye/seshd/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a subscriber whose outbound buffer is full.
type Policy interface {
	OnBackPressure(sid domain.SessionID, client domain.ClientID, ev domain.Event) BackpressureAction
}

// SimplePolicy kicks a client that would miss a sequenced event and drops
// membership notices.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ domain.SessionID, _ domain.ClientID, ev domain.Event) BackpressureAction {
	if ev.Sequenced() {
		return KickMember
	}
	return DropFrame
}
