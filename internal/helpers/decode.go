package helpers

import (
	"github.com/andrei-cloud/go_protoop/internal/connection"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
)

// Frame decoders receive the frame window and its end offset and return
// the window past the decoded frame, or nil when decoding failed.

func decodeFrame(c *connection.Conn, op protoop.Opcode, bytes []byte, extra ...protoop.Value) ([]byte, error) {
	args := make([]protoop.Value, 0, 2+len(extra))
	args = append(args, buffer(bytes), protoop.Uint(uint64(len(bytes))))
	args = append(args, extra...)

	res, _, err := invoke(c, op, 0, args...)
	if err != nil {
		return nil, err
	}
	rest, _ := protoop.As[[]byte](res)

	return rest, nil
}

func DecodeStreamFrame(c *connection.Conn, bytes []byte, currentTime uint64) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeStreamFrame, bytes, protoop.Uint(currentTime))
}

func DecodeAckFrame(c *connection.Conn, bytes []byte, currentTime uint64, epoch protoop.Epoch) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeAckFrame, bytes, protoop.Uint(currentTime), protoop.Enum(epoch))
}

func DecodeAckECNFrame(c *connection.Conn, bytes []byte, currentTime uint64, epoch protoop.Epoch) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeAckECNFrame, bytes, protoop.Uint(currentTime), protoop.Enum(epoch))
}

func DecodeStreamResetFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeStreamResetFrame, bytes)
}

func DecodeConnectionCloseFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeConnectionCloseFrame, bytes)
}

func DecodeApplicationCloseFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeApplicationCloseFrame, bytes)
}

func DecodeMaxDataFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeMaxDataFrame, bytes)
}

func DecodeMaxStreamDataFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeMaxStreamDataFrame, bytes)
}

func DecodeMaxStreamIDFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeMaxStreamIDFrame, bytes)
}

func DecodeBlockedFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeBlockedFrame, bytes)
}

func DecodeStreamBlockedFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeStreamBlockedFrame, bytes)
}

func DecodeStreamIDNeededFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeStreamIDNeededFrame, bytes)
}

func DecodeNewConnectionIDFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeNewConnectionIDFrame, bytes)
}

func DecodeStopSendingFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeStopSendingFrame, bytes)
}

func DecodePathChallengeFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodePathChallengeFrame, bytes)
}

func DecodePathResponseFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodePathResponseFrame, bytes)
}

func DecodeCryptoHSFrame(c *connection.Conn, bytes []byte, epoch protoop.Epoch) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeCryptoHSFrame, bytes, protoop.Enum(epoch))
}

func DecodeNewTokenFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeNewTokenFrame, bytes)
}

// DecodeMPNewConnectionIDFrame decodes the multipath NEW_CONNECTION_ID
// extension frame.
func DecodeMPNewConnectionIDFrame(c *connection.Conn, bytes []byte) ([]byte, error) {
	return decodeFrame(c, protoop.OpDecodeMPNewConnectionIDFrame, bytes)
}
