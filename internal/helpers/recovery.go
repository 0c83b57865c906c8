package helpers

import (
	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// RetransmitNeededByPacket decides whether p must be retransmitted.
// outs[0] carries the updated timer-based flag.
func RetransmitNeededByPacket(c *connection.Conn, p Ref, currentTime uint64, timerBasedRetransmit *bool) (int, error) {
	res, outs, err := invoke(c, protoop.OpRetransmitNeededByPacket, 1,
		ref(p), protoop.Uint(currentTime), protoop.Bool(*timerBasedRetransmit))
	if err != nil {
		return 0, err
	}
	*timerBasedRetransmit = outs[0].Bool()

	return int(res.Int()), nil
}

// SkipFrame skips one frame. outs[0] is the consumed count and outs[1]
// the pure-ACK flag.
func SkipFrame(c *connection.Conn, bytes []byte, bytesMax uint64, consumed *uint64, pureAck *bool) (int, error) {
	res, outs, err := invoke(c, protoop.OpSkipFrame, 2,
		buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed), protoop.Bool(*pureAck))
	if err != nil {
		return 0, err
	}
	*consumed = outs[0].Uint()
	*pureAck = outs[1].Bool()

	return int(res.Int()), nil
}

// CheckStreamFrameAlreadyAcked reports through noNeedToRepeat whether the
// STREAM frame in bytes was fully acknowledged.
func CheckStreamFrameAlreadyAcked(c *connection.Conn, bytes []byte, bytesMax uint64, noNeedToRepeat *bool) (int, error) {
	res, outs, err := invoke(c, protoop.OpCheckStreamFrameAlreadyAcked, 1,
		buffer(bytes), protoop.Uint(bytesMax), protoop.Bool(*noNeedToRepeat))
	if err != nil {
		return 0, err
	}
	*noNeedToRepeat = outs[0].Bool()

	return int(res.Int()), nil
}

// DequeueRetransmitPacket removes p from the retransmit queue.
func DequeueRetransmitPacket(c *connection.Conn, p Ref, shouldFree bool) error {
	_, _, err := invoke(c, protoop.OpDequeueRetransmitPacket, 0, ref(p), protoop.Bool(shouldFree))
	return err
}

// PreparePacketOldContext builds a retransmission from an older packet
// context and returns its length. outs[0] is the header length.
func PreparePacketOldContext(c *connection.Conn, pc protoop.PacketContext, path, packet Ref,
	sendBufferMax, currentTime uint64, headerLength *uint32,
) (uint32, error) {
	res, outs, err := invoke(c, protoop.OpPreparePacketOldContext, 1,
		protoop.Enum(pc),
		ref(path),
		ref(packet),
		protoop.Uint(sendBufferMax),
		protoop.Uint(currentTime),
		protoop.Uint(uint64(*headerLength)),
	)
	if err != nil {
		return 0, err
	}
	*headerLength = uint32(outs[0].Uint())

	return uint32(res.Uint()), nil
}

// RetransmitNeeded fills packet with data needing retransmission. outs[0]
// is the cleartext flag and outs[1] the header length.
func RetransmitNeeded(c *connection.Conn, pc protoop.PacketContext, path Ref, currentTime uint64,
	packet Ref, sendBufferMax uint64, isCleartextMode *bool, headerLength *uint32,
) (int, error) {
	res, outs, err := invoke(c, protoop.OpRetransmitNeeded, 2,
		protoop.Enum(pc),
		ref(path),
		protoop.Uint(currentTime),
		ref(packet),
		protoop.Uint(sendBufferMax),
		protoop.Bool(*isCleartextMode),
		protoop.Uint(uint64(*headerLength)),
	)
	if err != nil {
		return 0, err
	}
	*isCleartextMode = outs[0].Bool()
	*headerLength = uint32(outs[1].Uint())

	return int(res.Int()), nil
}

// UpdateRTT feeds an RTT sample and returns the packet it acknowledged.
func UpdateRTT(c *connection.Conn, largest, currentTime, ackDelay uint64, pc protoop.PacketContext) (Ref, error) {
	res, _, err := invoke(c, protoop.OpUpdateRTT, 0,
		protoop.Uint(largest), protoop.Uint(currentTime), protoop.Uint(ackDelay), protoop.Enum(pc))
	return res.Ref(), err
}

// ProcessAckRange marks [highest-rng, highest] acknowledged. ppacket is a
// cursor the implementation may advance.
func ProcessAckRange(c *connection.Conn, pc protoop.PacketContext, highest, rng uint64, ppacket Ref, currentTime uint64) (int, error) {
	res, _, err := invoke(c, protoop.OpProcessAckRange, 0,
		protoop.Enum(pc), protoop.Uint(highest), protoop.Uint(rng), ref(ppacket), protoop.Uint(currentTime))
	return int(res.Int()), err
}

// CheckSpuriousRetransmission detects packets declared lost too early.
func CheckSpuriousRetransmission(c *connection.Conn, startOfRange, endOfRange, currentTime uint64, pc protoop.PacketContext) error {
	_, _, err := invoke(c, protoop.OpCheckSpuriousRetransmission, 0,
		protoop.Uint(startOfRange), protoop.Uint(endOfRange), protoop.Uint(currentTime), protoop.Enum(pc))
	return err
}
