package orchestrator

import "errors"

var (
	ErrLengthMismatch         = errors.New("token and percentage arrays differ in length")
	ErrNoAssets               = errors.New("no assets selected")
	ErrInvalidBps             = errors.New("percentage out of basis point range")
	ErrInsufficientFeeBalance = errors.New("insufficient fee balance for cross-chain send")
	ErrDuplicateMessage       = errors.New("message already processed")
	ErrRemoteExecution        = errors.New("strategy adapter execution failed")
	ErrUnknownOperation       = errors.New("unknown pending operation")
	ErrUnsupportedMessage     = errors.New("unsupported message type")
)
