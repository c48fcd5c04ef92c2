package game

import "errors"

var (
	// ErrInvalidPlayerID is returned when a player id is empty or too long
	ErrInvalidPlayerID = errors.New("invalid player id")

	// ErrUnknownPlayer is returned when an answer comes from a player who is not connected
	ErrUnknownPlayer = errors.New("unknown player")

	// ErrNoActiveQuestion is returned when the question is requested outside of play
	ErrNoActiveQuestion = errors.New("no active question")
)
