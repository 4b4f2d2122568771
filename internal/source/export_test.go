package source

// Deliver exposes the message path for tests without a broker.
func (s *Subscriber) Deliver(topic string, payload []byte) { s.deliver(topic, payload) }
