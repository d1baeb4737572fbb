package protocol

import "errors"

var (
	ErrBadEUI        = errors.New("malformed EUI string")
	ErrFrameTooShort = errors.New("frame too short")
	ErrPeerTableFull = errors.New("peer table full")
	ErrQueueFull     = errors.New("intake queue full")
	ErrRangingMath   = errors.New("invalid ranging arithmetic")
	ErrNotStarted    = errors.New("engine not started")
)
