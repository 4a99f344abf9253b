package core

// Observer receives counters and gauges from agents and their transports.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	StateChanged(agent string, state ConnectionState)
	MessageReceived(agent string)
	MessageMalformed(agent string)
	MessageDispatched(agent string)
	HandlerFailed(agent string)
	Reconnected(agent string)
	MessageSent(agent string, err error)
	WatermarkAdvanced(agent string, watermark float64)
}

// NoOpObserver discards all observations.
type NoOpObserver struct{}

func (NoOpObserver) StateChanged(string, ConnectionState) {}
func (NoOpObserver) MessageReceived(string)               {}
func (NoOpObserver) MessageMalformed(string)              {}
func (NoOpObserver) MessageDispatched(string)             {}
func (NoOpObserver) HandlerFailed(string)                 {}
func (NoOpObserver) Reconnected(string)                   {}
func (NoOpObserver) MessageSent(string, error)            {}
func (NoOpObserver) WatermarkAdvanced(string, float64)    {}

// ObserverOrNoOp returns o, or a NoOpObserver when o is nil.
func ObserverOrNoOp(o Observer) Observer {
	if o == nil {
		return NoOpObserver{}
	}
	return o
}
