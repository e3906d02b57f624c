package domain

import "errors"

var (
	ErrEmptyName        = errors.New("display name is empty")
	ErrAlreadyJoined    = errors.New("connection already joined")
	ErrNotJoined        = errors.New("connection has not joined")
	ErrNotMember        = errors.New("connection is not a channel member")
	ErrUnknownRecipient = errors.New("recipient not connected")
	ErrMessageNotFound  = errors.New("message not found")
	ErrEmptyMessage     = errors.New("empty message")
	ErrMessageTooLong   = errors.New("message too long")
	ErrInvalidPayload   = errors.New("invalid payload")
)
