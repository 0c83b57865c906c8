package helpers

import (
	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// Frame senders share one output convention: outs[0] is the updated
// consumed byte count.

func prepareFrame(c *connection.Conn, op protoop.Opcode, consumed *uint64, args ...protoop.Value) (int, error) {
	res, outs, err := invoke(c, op, 1, args...)
	if err != nil {
		return 0, err
	}
	*consumed = outs[0].Uint()

	return int(res.Int()), nil
}

// PrepareMTUProbe writes an MTU probe into bytes and returns its length.
func PrepareMTUProbe(c *connection.Conn, path Ref, headerLength, checksumLength uint32, bytes []byte) (uint32, error) {
	res, _, err := invoke(c, protoop.OpPrepareMTUProbe, 0,
		ref(path),
		protoop.Uint(uint64(headerLength)),
		protoop.Uint(uint64(checksumLength)),
		buffer(bytes),
	)

	return uint32(res.Uint()), err
}

// PreparePathChallengeFrame writes a PATH_CHALLENGE for path.
func PreparePathChallengeFrame(c *connection.Conn, bytes []byte, bytesMax uint64, consumed *uint64, path Ref) (int, error) {
	return prepareFrame(c, protoop.OpPreparePathChallengeFrame, consumed,
		buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed), ref(path))
}

// PrepareAckFrame writes an ACK frame for packet context pc.
func PrepareAckFrame(c *connection.Conn, currentTime uint64, pc protoop.PacketContext,
	bytes []byte, bytesMax uint64, consumed *uint64,
) (int, error) {
	return prepareFrame(c, protoop.OpPrepareAckFrame, consumed,
		protoop.Uint(currentTime), protoop.Enum(pc), buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed))
}

// PrepareCryptoHSFrame writes pending handshake data of epoch.
func PrepareCryptoHSFrame(c *connection.Conn, epoch protoop.Epoch, bytes []byte, bytesMax uint64, consumed *uint64) (int, error) {
	return prepareFrame(c, protoop.OpPrepareCryptoHSFrame, consumed,
		protoop.Enum(epoch), buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed))
}

// PrepareFirstMiscFrame writes the first queued miscellaneous frame.
func PrepareFirstMiscFrame(c *connection.Conn, bytes []byte, bytesMax uint64, consumed *uint64) (int, error) {
	return prepareFrame(c, protoop.OpPrepareFirstMiscFrame, consumed,
		buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed))
}

// PrepareMaxDataFrame writes a MAX_DATA frame raising the limit by
// maxdataIncrease.
func PrepareMaxDataFrame(c *connection.Conn, maxdataIncrease uint64, bytes []byte, bytesMax uint64, consumed *uint64) (int, error) {
	return prepareFrame(c, protoop.OpPrepareMaxDataFrame, consumed,
		protoop.Uint(maxdataIncrease), buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed))
}

// PrepareRequiredMaxStreamDataFrames writes every MAX_STREAM_DATA frame due.
func PrepareRequiredMaxStreamDataFrames(c *connection.Conn, bytes []byte, bytesMax uint64, consumed *uint64) (int, error) {
	return prepareFrame(c, protoop.OpPrepareRequiredMaxStreamDataFrames, consumed,
		buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed))
}

// PrepareStreamFrame writes a STREAM frame for stream.
func PrepareStreamFrame(c *connection.Conn, stream Ref, bytes []byte, bytesMax uint64, consumed *uint64) (int, error) {
	return prepareFrame(c, protoop.OpPrepareStreamFrame, consumed,
		ref(stream), buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed))
}

// PrepareMPNewConnectionIDFrame writes a multipath NEW_CONNECTION_ID frame
// for pathID.
func PrepareMPNewConnectionIDFrame(c *connection.Conn, bytes []byte, bytesMax uint64, consumed *uint64, pathID uint64) (int, error) {
	return prepareFrame(c, protoop.OpPrepareMPNewConnectionIDFrame, consumed,
		buffer(bytes), protoop.Uint(bytesMax), protoop.Uint(*consumed), protoop.Uint(pathID))
}

// FinalizeAndProtectPacket seals packet into sendBuffer and stores the
// resulting datagram length in sendLength.
func FinalizeAndProtectPacket(c *connection.Conn, packet Ref, ret int,
	length, headerLength, checksumOverhead uint32, sendLength *uint64,
	sendBuffer []byte, sendBufferMax uint32, path Ref, currentTime uint64,
) error {
	res, _, err := invoke(c, protoop.OpFinalizeAndProtectPacket, 0,
		ref(packet),
		protoop.Int(int64(ret)),
		protoop.Uint(uint64(length)),
		protoop.Uint(uint64(headerLength)),
		protoop.Uint(uint64(checksumOverhead)),
		protoop.Uint(*sendLength),
		buffer(sendBuffer),
		protoop.Uint(uint64(sendBufferMax)),
		ref(path),
		protoop.Uint(currentTime),
	)
	if err != nil {
		return err
	}
	*sendLength = res.Uint()

	return nil
}
