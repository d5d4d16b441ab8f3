package repository

import "errors"

var (
	// ErrStatusConflict indicates a conditional status transition matched no row.
	ErrStatusConflict = errors.New("submission status changed concurrently")
	// ErrInsufficientCoins indicates a debit would make a balance negative.
	ErrInsufficientCoins = errors.New("insufficient coin balance")
)
