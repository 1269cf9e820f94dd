package game

import "errors"

// Client-visible error codes. The strings are part of the wire contract
// and must stay stable.
var (
	ErrRoomNotFound     = errors.New("ROOM_NOT_FOUND")
	ErrNotHost          = errors.New("NOT_HOST")
	ErrInvalidStagePlan = errors.New("INVALID_STAGE_PLAN")
	ErrCantStart        = errors.New("CANT_START")
	ErrNoStageActive    = errors.New("NO_STAGE_ACTIVE")
	ErrRoundNotReady    = errors.New("ROUND_NOT_READY")
	ErrRoundRevealed    = errors.New("ROUND_REVEALED")
	ErrAlreadyCorrect   = errors.New("ALREADY_CORRECT")
	ErrAlreadyGuessed   = errors.New("ALREADY_GUESSED_THIS_SNIPPET")
	ErrNoSongsRemaining = errors.New("NO_SONGS_REMAINING")
	ErrNoEligibleData   = errors.New("NO_ELIGIBLE_DATA")
	ErrStaleState       = errors.New("STALE_STATE")
	ErrNotInRoom        = errors.New("NOT_IN_ROOM")
	ErrBadRequest       = errors.New("BAD_REQUEST")
	ErrRateLimited      = errors.New("RATE_LIMITED")
	ErrUnknownCommand   = errors.New("UNKNOWN_COMMAND")
	ErrServer           = errors.New("server_error")
)

// errCode maps an error to the string sent in the ack. Anything that is
// not one of the stable codes collapses to server_error so internals
// never leak to clients.
func errCode(err error) string {
	for _, known := range []error{
		ErrRoomNotFound, ErrNotHost, ErrInvalidStagePlan, ErrCantStart,
		ErrNoStageActive, ErrRoundNotReady, ErrRoundRevealed, ErrAlreadyCorrect,
		ErrAlreadyGuessed, ErrNoSongsRemaining, ErrNoEligibleData, ErrStaleState,
		ErrNotInRoom, ErrBadRequest, ErrRateLimited, ErrUnknownCommand,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrServer.Error()
}
