package protocol

// Status is the outcome of one consumer poll
type Status uint8

const (
	StatusNoData Status = iota
	StatusSuccess
	StatusCorrupted
	StatusNoise
	StatusBufferOverflow

	// StatusDuplicate never leaves the receiver; duplicates are skipped
	StatusDuplicate
)

func (s Status) String() string {
	switch s {
	case StatusNoData:
		return "no data"
	case StatusSuccess:
		return "success"
	case StatusCorrupted:
		return "corrupted"
	case StatusNoise:
		return "noise"
	case StatusBufferOverflow:
		return "buffer overflow"
	case StatusDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Err maps a status to a sentinel error, nil for StatusSuccess
func (s Status) Err() error {
	switch s {
	case StatusSuccess, StatusDuplicate:
		return nil
	case StatusNoData:
		return ErrNoData
	case StatusCorrupted:
		return ErrCorrupted
	case StatusNoise:
		return ErrNoise
	case StatusBufferOverflow:
		return ErrBufferOverflow
	default:
		return ErrNoData
	}
}
