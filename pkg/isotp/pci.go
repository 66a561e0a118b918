package isotp

import "time"

// Protocol control information, high nibble of the first byte
const (
	pciSingleFrame      = 0x00
	pciFirstFrame       = 0x10
	pciConsecutiveFrame = 0x20
	pciFlowControl      = 0x30
)

type FlowStatus byte

const (
	FlowContinueToSend FlowStatus = 0x00
	FlowWait           FlowStatus = 0x01
	FlowOverflow       FlowStatus = 0x02
)

const (
	frameLength         = 8
	singleFrameMaxData  = 7
	firstFrameData      = 6
	consecutiveDataSize = 7
)

func encodeSingleFrame(data []byte) []byte {
	out := make([]byte, 0, frameLength)
	out = append(out, pciSingleFrame|byte(len(data)))
	return append(out, data...)
}

// encodeFirstFrame announces size with the 12 bit length field and carries the first 6 bytes.
func encodeFirstFrame(size int, data []byte) []byte {
	out := make([]byte, 0, frameLength)
	out = append(out, pciFirstFrame|byte(size>>8&0x0F), byte(size))
	return append(out, data[:firstFrameData]...)
}

func encodeConsecutiveFrame(seq byte, data []byte) []byte {
	out := make([]byte, 0, frameLength)
	out = append(out, pciConsecutiveFrame|seq&0x0F)
	return append(out, data...)
}

func encodeFlowControl(fs FlowStatus, blockSize, stmin byte) []byte {
	return []byte{pciFlowControl | byte(fs), blockSize, stmin}
}

func pad(data []byte, b byte) []byte {
	for len(data) < frameLength {
		data = append(data, b)
	}
	return data
}

// DecodeSTmin converts the separation time byte of a flow control frame.
// 0x00-0x7F are milliseconds, 0xF1-0xF9 are 100-900 microseconds, reserved
// values are treated as the maximum of 127ms.
func DecodeSTmin(b byte) time.Duration {
	switch {
	case b <= 0x7F:
		return time.Duration(b) * time.Millisecond
	case b >= 0xF1 && b <= 0xF9:
		return time.Duration(b-0xF0) * 100 * time.Microsecond
	default:
		return 127 * time.Millisecond
	}
}
