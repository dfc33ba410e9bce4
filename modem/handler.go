package modem

import "i4.energy/across/loragw/at"

// EventHandler receives unsolicited events from the module.
//
// HandleEvent runs synchronously on the Loop goroutine. While it executes no
// further line is read, so no in-flight command can complete. Implementations
// must return quickly and hand long-running work to another goroutine.
type EventHandler interface {
	HandleEvent(ev at.Event)
}

// EventHandlerFunc adapts a plain function to EventHandler.
type EventHandlerFunc func(ev at.Event)

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ev at.Event) {
	f(ev)
}

// dispatch delivers ev to the registered handler. Without a handler the event
// is dropped.
func (m *Modem) dispatch(ev at.Event) {
	if m.config.handler == nil {
		m.logger.Debug("dropping event, no handler", "kind", ev.Kind())
		return
	}
	m.config.handler.HandleEvent(ev)
}
