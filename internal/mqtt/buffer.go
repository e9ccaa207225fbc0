package mqtt

import "github.com/rs/zerolog/log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	retained bool
}

// outbox holds messages published while disconnected. State-like topics
// keep only their latest payload; other topics queue in order up to
// capacity, dropping the oldest.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	latest   map[string]int // topic -> index in msgs for coalesced topics
	coalesce map[string]bool
	msgs     []bufferedMsg
	capacity int
	overflow bool // true if any message was dropped since last drain
}

func newOutbox(capacity int, coalesce ...string) *outbox {
	o := &outbox{
		latest:   map[string]int{},
		coalesce: map[string]bool{},
		capacity: capacity,
	}
	for _, t := range coalesce {
		o.coalesce[t] = true
	}
	return o
}

func (o *outbox) push(msg bufferedMsg) {
	if o.coalesce[msg.topic] {
		if i, ok := o.latest[msg.topic]; ok {
			o.msgs[i] = msg
			return
		}
	}
	if len(o.msgs) == o.capacity {
		if !o.overflow {
			log.Warn().Int("capacity", o.capacity).Msg("mqtt: outbox full, dropping oldest")
			o.overflow = true
		}
		o.dropOldest()
	}
	if o.coalesce[msg.topic] {
		o.latest[msg.topic] = len(o.msgs)
	}
	o.msgs = append(o.msgs, msg)
}

func (o *outbox) dropOldest() {
	dropped := o.msgs[0]
	o.msgs = o.msgs[1:]
	if o.coalesce[dropped.topic] {
		delete(o.latest, dropped.topic)
	}
	for t, i := range o.latest {
		o.latest[t] = i - 1
	}
}

func (o *outbox) drainAll() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	result := o.msgs
	o.msgs = nil
	o.latest = map[string]int{}
	o.overflow = false
	return result
}

func (o *outbox) len() int {
	return len(o.msgs)
}
