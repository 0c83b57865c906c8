package protoop

// PacketContext selects one of the packet number spaces.
type PacketContext int

const (
	PacketContextApplication PacketContext = iota
	PacketContextHandshake
	PacketContextInitial
)

// ContextFromEpoch maps a crypto epoch onto its packet number space. Epochs
// outside 0..3 map to the zero context.
func ContextFromEpoch(epoch Epoch) PacketContext {
	switch epoch {
	case EpochInitial:
		return PacketContextInitial
	case EpochHandshake:
		return PacketContextHandshake
	case EpochZeroRTT, EpochOneRTT:
		return PacketContextApplication
	default:
		return 0
	}
}

// Epoch is a crypto epoch index.
type Epoch int

const (
	EpochInitial Epoch = iota
	EpochZeroRTT
	EpochHandshake
	EpochOneRTT
)

// PacketType is the long or short header packet type.
type PacketType int

const (
	PacketTypeError PacketType = iota
	PacketTypeVersionNegotiation
	PacketTypeInitial
	PacketTypeRetry
	PacketTypeHandshake
	PacketType0RTTProtected
	PacketType1RTTProtected
)

// CongestionNotification is the event passed to congestion algorithms.
type CongestionNotification int

const (
	CongestionAcknowledgement CongestionNotification = iota
	CongestionRepeat
	CongestionTimeout
	CongestionSpuriousRepeat
	CongestionRTTMeasurement
)

// CallbackEvent is the event passed to the application callback.
type CallbackEvent int

const (
	CallbackStreamData CallbackEvent = iota
	CallbackStreamFin
	CallbackStreamReset
	CallbackStopSending
	CallbackClose
	CallbackApplicationClose
	CallbackStreamGap
	CallbackPrepareToSend
	CallbackAlmostReady
	CallbackReady
)
