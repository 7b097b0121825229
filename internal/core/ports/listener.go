package ports

import "github.com/99minutos/courier-tracking/internal/core/domain"

// SessionListener receives tracking session events. Methods are invoked on
// the session loop goroutine, in order, and must not block. Session queries
// made from a callback run inline; Stop from a callback ends the run once the
// callback returns.
type SessionListener interface {
	OnPositionUpdate(p domain.Position)
	OnStatusChange(change domain.StatusChange)
	OnETAUpdate(estimate domain.ETAEstimate)
}

// ListenerFuncs adapts plain functions to SessionListener. Nil fields are
// skipped.
type ListenerFuncs struct {
	Position func(domain.Position)
	Status   func(domain.StatusChange)
	ETA      func(domain.ETAEstimate)
}

func (f ListenerFuncs) OnPositionUpdate(p domain.Position) {
	if f.Position != nil {
		f.Position(p)
	}
}

func (f ListenerFuncs) OnStatusChange(change domain.StatusChange) {
	if f.Status != nil {
		f.Status(change)
	}
}

func (f ListenerFuncs) OnETAUpdate(estimate domain.ETAEstimate) {
	if f.ETA != nil {
		f.ETA(estimate)
	}
}
