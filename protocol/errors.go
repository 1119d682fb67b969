package protocol

import "errors"

var (
	ErrUnknownPreset     = errors.New("unknown data-rate preset")
	ErrUnknownErrorCheck = errors.New("unknown error-check scheme")
	ErrOverlappingBands  = errors.New("pulse classification bands overlap")
	ErrInvalidTiming     = errors.New("invalid pulse timing")
	ErrPayloadTooLarge   = errors.New("payload does not fit in one frame")
	ErrRingTooSmall      = errors.New("ring capacity below minimum")

	ErrNoData         = errors.New("no data received")
	ErrCorrupted      = errors.New("frame failed error check")
	ErrNoise          = errors.New("frame carried no data")
	ErrBufferOverflow = errors.New("output buffer too small for frame")
)
