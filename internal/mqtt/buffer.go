package mqtt

import "github.com/rs/zerolog"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// DefaultBufferSize is how many messages are kept while offline.
const DefaultBufferSize = 256

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf      []bufferedMsg
	head     int // next write position
	count    int
	overflow bool // set once a message is dropped, cleared by drainAll
	dropped  int
	log      zerolog.Logger
}

func newRingBuffer(capacity int, logger zerolog.Logger) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf: make([]bufferedMsg, capacity),
		log: logger,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	capacity := len(r.buf)
	if r.count == capacity {
		if !r.overflow {
			r.log.Warn().Int("capacity", capacity).Msg("mqtt buffer full, dropping oldest")
			r.overflow = true
		}
		// head already points at the oldest entry
		r.buf[r.head] = msg
		r.head = (r.head + 1) % capacity
		r.dropped++
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % capacity
	r.count++
}

// drainAll returns buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	capacity := len(r.buf)
	result := make([]bufferedMsg, r.count)
	start := (r.head - r.count + capacity) % capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
