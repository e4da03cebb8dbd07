package presence

import "errors"

var (
	// ErrUnknownSession is returned when the session id is not connected.
	ErrUnknownSession = errors.New("unknown session")

	// ErrRoomNotFound is returned when a room code is neither active nor reserved.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when a join would exceed the room capacity.
	ErrRoomFull = errors.New("room is full")

	// ErrInvalidRoomCode is returned when a code does not match ROOM-XXXXX.
	ErrInvalidRoomCode = errors.New("invalid room code")

	// ErrInvalidStats is returned when a stats update carries a negative value.
	ErrInvalidStats = errors.New("stats must be non-negative")

	// ErrNotInRoom is returned when an operation needs a room the session has not joined.
	ErrNotInRoom = errors.New("session is not in a room")

	// ErrUnknownTarget is returned when a signal is addressed to a session that is gone.
	ErrUnknownTarget = errors.New("signal target not connected")

	// ErrEmptyMessage is returned for blank chat messages.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a chat message exceeds MaxMessageLength.
	ErrMessageTooLong = errors.New("message too long")

	// ErrCodeSpaceExhausted is returned when no unused room code was found.
	ErrCodeSpaceExhausted = errors.New("could not generate a unique room code")

	// ErrManagerStopped is returned once the event loop has exited.
	ErrManagerStopped = errors.New("presence manager stopped")
)
