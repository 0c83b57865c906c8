// Command ack_delay is a WASM plugin replacing update_ack_delay. It sets the
// local ACK delay to a quarter of the RTT estimate, clamped to [1ms, 10ms]
// once the estimate has settled.
//
// Build with: tinygo build -o ack_delay.wasm -target=wasi -buildmode=c-shared .
package main

import "github.com/andrei-cloud/go_protoop/pkg/pluginsdk"

const (
	minAckDelay = 1000  // microseconds
	maxAckDelay = 10000 // microseconds
)

// UpdateAckDelay reads (pkt_ctx, old_path, rtt_estimate, first_estimate)
// and stores the new delay in output 0.
//
//export update_ack_delay
func UpdateAckDelay() uint64 {
	rtt := pluginsdk.InputInt(2)
	first := pluginsdk.InputBool(3)

	delay := ackDelay(rtt, first)
	pluginsdk.Printf(uint64(rtt), uint64(delay))
	pluginsdk.SetOutputInt(0, delay)

	return 0
}

func ackDelay(rtt int64, first bool) int64 {
	delay := rtt / 4
	switch {
	case delay < minAckDelay:
		return minAckDelay
	case !first && delay > maxAckDelay:
		return maxAckDelay
	default:
		return delay
	}
}

func main() {}
