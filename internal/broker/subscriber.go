package broker

import "github.com/ibs-source/serial-broker/internal/message"

// Subscriber receives messages published on a topic it registered for.
//
// OnMessage runs on the goroutine that called ProcessMessages, after the
// broker lock has been released, so it may call Publish or Subscribe. It must
// not call ProcessMessages and must not modify msg.Payload, which is shared
// with the other subscribers of the same delivery. A returned error is logged
// and does not stop delivery to the remaining subscribers.
type Subscriber interface {
	OnMessage(msg message.Message) error
}

// SubscriberFunc adapts a plain function to Subscriber
type SubscriberFunc func(msg message.Message) error

// OnMessage calls f(msg)
func (f SubscriberFunc) OnMessage(msg message.Message) error {
	return f(msg)
}
