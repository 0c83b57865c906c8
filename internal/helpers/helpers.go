// Package helpers gives every protocol operation an ordinary Go signature.
//
// Each facade packs its parameters in order into the generic input vector,
// invokes the operation with an output buffer of the documented arity and
// copies the outputs back into its pointer parameters in documented order.
// The returned error is the invocation layer's; the operation's own status
// travels in the primary result as it always has.
package helpers

import (
	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// Ref is an opaque reference to a host structure owned by the protocol
// layer (packet, path, stream, packet context).
type Ref = any

func invoke(c *connection.Conn, op protoop.Opcode, nouts int, args ...protoop.Value) (protoop.Value, []protoop.Value, error) {
	var buf [protoop.MaxArgs]protoop.Value
	outs := buf[:nouts]

	res, err := c.Invoke(op, args, outs)
	if err != nil {
		return protoop.Value{}, nil, err
	}

	return res, outs, nil
}

func ref(r Ref) protoop.Value {
	return protoop.Pointer(r)
}

func buffer(b []byte) protoop.Value {
	if b == nil {
		return protoop.Pointer(nil)
	}

	return protoop.Pointer(b)
}

// GetChecksumLength returns the AEAD overhead for the current keys.
func GetChecksumLength(c *connection.Conn, isCleartextMode bool) (uint32, error) {
	res, _, err := invoke(c, protoop.OpGetChecksumLength, 0, protoop.Bool(isCleartextMode))
	return uint32(res.Uint()), err
}

// Printf hands a single argument to the connection's print operation.
func Printf(c *connection.Conn, arg protoop.Value) error {
	_, _, err := invoke(c, protoop.OpPrintf, 0, arg)
	return err
}

// CongestionAlgorithmNotify forwards a congestion event for path.
func CongestionAlgorithmNotify(c *connection.Conn, path Ref, notification protoop.CongestionNotification,
	rttMeasurement, nbBytesAcknowledged, lostPacketNumber, currentTime uint64,
) error {
	_, _, err := invoke(c, protoop.OpCongestionAlgorithmNotify, 0,
		ref(path),
		protoop.Enum(notification),
		protoop.Uint(rttMeasurement),
		protoop.Uint(nbBytesAcknowledged),
		protoop.Uint(lostPacketNumber),
		protoop.Uint(currentTime),
	)

	return err
}

// CallbackFunction delivers stream data or an event to the application.
func CallbackFunction(c *connection.Conn, streamID uint64, bytes []byte,
	event protoop.CallbackEvent, callbackCtx Ref,
) error {
	_, _, err := invoke(c, protoop.OpCallbackFunction, 0,
		protoop.Uint(streamID),
		buffer(bytes),
		protoop.Uint(uint64(len(bytes))),
		protoop.Enum(event),
		ref(callbackCtx),
	)

	return err
}

// PredictPacketHeaderLength estimates the header size of a packet type.
func PredictPacketHeaderLength(c *connection.Conn, packetType protoop.PacketType) (uint32, error) {
	res, _, err := invoke(c, protoop.OpPredictPacketHeaderLength, 0, protoop.Enum(packetType))
	return uint32(res.Uint()), err
}

// FindReadyStream returns the next stream with data to send, or nil.
func FindReadyStream(c *connection.Conn) (Ref, error) {
	res, _, err := invoke(c, protoop.OpFindReadyStream, 0)
	return res.Ref(), err
}

// IsAckNeeded reports whether an ACK must be sent in pc.
func IsAckNeeded(c *connection.Conn, currentTime uint64, pc protoop.PacketContext) (bool, error) {
	res, _, err := invoke(c, protoop.OpIsAckNeeded, 0, protoop.Uint(currentTime), protoop.Enum(pc))
	return res.Bool(), err
}

// IsTLSStreamReady reports whether crypto data is waiting.
func IsTLSStreamReady(c *connection.Conn) (bool, error) {
	res, _, err := invoke(c, protoop.OpIsTLSStreamReady, 0)
	return res.Bool(), err
}

// SetNextWakeTime reschedules the connection.
func SetNextWakeTime(c *connection.Conn, currentTime uint64) error {
	_, _, err := invoke(c, protoop.OpSetNextWakeTime, 0, protoop.Uint(currentTime))
	return err
}

// ConnectionError moves the connection to the error state.
func ConnectionError(c *connection.Conn, localError uint16, frameType uint64) (int, error) {
	res, _, err := invoke(c, protoop.OpConnectionError, 0,
		protoop.Uint(uint64(localError)), protoop.Uint(frameType))
	return int(res.Int()), err
}

// UpdateAckDelay recomputes the local ACK delay of a packet context.
func UpdateAckDelay(c *connection.Conn, pktCtx, oldPath Ref, rttEstimate int64, firstEstimate bool) error {
	_, _, err := invoke(c, protoop.OpUpdateAckDelay, 0,
		ref(pktCtx), ref(oldPath), protoop.Int(rttEstimate), protoop.Bool(firstEstimate))
	return err
}

// NotifyRecoveredFrame hands a recovered frame slot over; the implementation
// takes ownership of the block at slot.
func NotifyRecoveredFrame(c *connection.Conn, slot uint64, received bool) error {
	_, _, err := invoke(c, protoop.OpNotifyRecoveredFrame, 0, protoop.Uint(slot), protoop.Bool(received))
	return err
}
