package protoop

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxArgs is the fixed capacity of both the input and the output vectors of
// an invocation.
const MaxArgs = 10

// Opcode identifies a protocol operation.
type Opcode uint32

// Operation families. Frame decoders and frame senders are numbered as
// offsets from their family base, so extensions can address operations
// beyond the named ones with OpDecodeFrames+n or OpSender+n.
const (
	OpDecodeFrames Opcode = 0x100
	OpSender       Opcode = 0x200
)

// Core operations.
const (
	OpPrintf Opcode = iota + 1
	OpNoop
	OpGetChecksumLength
	OpRetransmitNeededByPacket
	OpCongestionAlgorithmNotify
	OpCallbackFunction
	OpSkipFrame
	OpCheckStreamFrameAlreadyAcked
	OpPredictPacketHeaderLength
	OpDequeueRetransmitPacket
	OpFindReadyStream
	OpIsAckNeeded
	OpIsTLSStreamReady
	OpPreparePacketOldContext
	OpRetransmitNeeded
	OpSetNextWakeTime
	OpConnectionError
	OpUpdateRTT
	OpProcessAckRange
	OpCheckSpuriousRetransmission
	OpUpdateAckDelay
	OpNotifyRecoveredFrame
	OpFinalizeAndProtectPacket
)

// Frame decoders.
const (
	OpDecodeStreamFrame Opcode = OpDecodeFrames + iota
	OpDecodeAckFrame
	OpDecodeAckECNFrame
	OpDecodeStreamResetFrame
	OpDecodeConnectionCloseFrame
	OpDecodeApplicationCloseFrame
	OpDecodeMaxDataFrame
	OpDecodeMaxStreamDataFrame
	OpDecodeMaxStreamIDFrame
	OpDecodeBlockedFrame
	OpDecodeStreamBlockedFrame
	OpDecodeStreamIDNeededFrame
	OpDecodeNewConnectionIDFrame
	OpDecodeStopSendingFrame
	OpDecodePathChallengeFrame
	OpDecodePathResponseFrame
	OpDecodeCryptoHSFrame
	OpDecodeNewTokenFrame

	// OpDecodeMPNewConnectionIDFrame is the multipath extension decoder.
	OpDecodeMPNewConnectionIDFrame = OpDecodeFrames + 0x28
)

// Frame senders.
const (
	OpPrepareMTUProbe Opcode = OpSender + iota
	OpPreparePathChallengeFrame
	OpPrepareAckFrame
	OpPrepareCryptoHSFrame
	OpPrepareFirstMiscFrame
	OpPrepareMaxDataFrame
	OpPrepareRequiredMaxStreamDataFrames
	OpPrepareStreamFrame

	// OpPrepareMPNewConnectionIDFrame is the multipath extension sender.
	OpPrepareMPNewConnectionIDFrame = OpSender + 0x48
)

var opcodeNames = map[Opcode]string{
	OpPrintf:                       "printf",
	OpNoop:                         "noop",
	OpGetChecksumLength:            "get_checksum_length",
	OpRetransmitNeededByPacket:     "retransmit_needed_by_packet",
	OpCongestionAlgorithmNotify:    "congestion_algorithm_notify",
	OpCallbackFunction:             "callback_function",
	OpSkipFrame:                    "skip_frame",
	OpCheckStreamFrameAlreadyAcked: "check_stream_frame_already_acked",
	OpPredictPacketHeaderLength:    "predict_packet_header_length",
	OpDequeueRetransmitPacket:      "dequeue_retransmit_packet",
	OpFindReadyStream:              "find_ready_stream",
	OpIsAckNeeded:                  "is_ack_needed",
	OpIsTLSStreamReady:             "is_tls_stream_ready",
	OpPreparePacketOldContext:      "prepare_packet_old_context",
	OpRetransmitNeeded:             "retransmit_needed",
	OpSetNextWakeTime:              "set_next_wake_time",
	OpConnectionError:              "connection_error",
	OpUpdateRTT:                    "update_rtt",
	OpProcessAckRange:              "process_ack_range",
	OpCheckSpuriousRetransmission:  "check_spurious_retransmission",
	OpUpdateAckDelay:               "update_ack_delay",
	OpNotifyRecoveredFrame:         "notify_recovered_frame",
	OpFinalizeAndProtectPacket:     "finalize_and_protect_packet",

	OpDecodeStreamFrame:            "decode_stream_frame",
	OpDecodeAckFrame:               "decode_ack_frame",
	OpDecodeAckECNFrame:            "decode_ack_ecn_frame",
	OpDecodeStreamResetFrame:       "decode_stream_reset_frame",
	OpDecodeConnectionCloseFrame:   "decode_connection_close_frame",
	OpDecodeApplicationCloseFrame:  "decode_application_close_frame",
	OpDecodeMaxDataFrame:           "decode_max_data_frame",
	OpDecodeMaxStreamDataFrame:     "decode_max_stream_data_frame",
	OpDecodeMaxStreamIDFrame:       "decode_max_stream_id_frame",
	OpDecodeBlockedFrame:           "decode_blocked_frame",
	OpDecodeStreamBlockedFrame:     "decode_stream_blocked_frame",
	OpDecodeStreamIDNeededFrame:    "decode_stream_id_needed_frame",
	OpDecodeNewConnectionIDFrame:   "decode_new_connection_id_frame",
	OpDecodeStopSendingFrame:       "decode_stop_sending_frame",
	OpDecodePathChallengeFrame:     "decode_path_challenge_frame",
	OpDecodePathResponseFrame:      "decode_path_response_frame",
	OpDecodeCryptoHSFrame:          "decode_crypto_hs_frame",
	OpDecodeNewTokenFrame:          "decode_new_token_frame",
	OpDecodeMPNewConnectionIDFrame: "decode_mp_new_connection_id_frame",

	OpPrepareMTUProbe:                    "prepare_mtu_probe",
	OpPreparePathChallengeFrame:          "prepare_path_challenge_frame",
	OpPrepareAckFrame:                    "prepare_ack_frame",
	OpPrepareCryptoHSFrame:               "prepare_crypto_hs_frame",
	OpPrepareFirstMiscFrame:              "prepare_first_misc_frame",
	OpPrepareMaxDataFrame:                "prepare_max_data_frame",
	OpPrepareRequiredMaxStreamDataFrames: "prepare_required_max_stream_data_frames",
	OpPrepareStreamFrame:                 "prepare_stream_frame",
	OpPrepareMPNewConnectionIDFrame:      "prepare_mp_new_connection_id_frame",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}

	return m
}()

// String returns the operation name, or its hex value when unnamed.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}

	return fmt.Sprintf("0x%x", uint32(op))
}

// ParseOpcode resolves an operation name or a numeric literal (decimal or
// 0x-prefixed hex) into an Opcode.
func ParseOpcode(s string) (Opcode, error) {
	s = strings.TrimSpace(s)
	if op, ok := opcodesByName[strings.ToLower(s)]; ok {
		return op, nil
	}

	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown protoop %q", s)
	}

	return Opcode(n), nil
}

// Known returns every named operation sorted by opcode.
func Known() []Opcode {
	ops := make([]Opcode, 0, len(opcodeNames))
	for op := range opcodeNames {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	return ops
}
