package fanout

import "errors"

var (
	// ErrCodeExhausted — не удалось подобрать свободный код за maxCodeDraws попыток.
	ErrCodeExhausted = errors.New("verification code draws exhausted")

	// errAlreadyGranted — у участника уже есть active grant. Считается как skipped.
	errAlreadyGranted = errors.New("member already holds an active grant")
)
