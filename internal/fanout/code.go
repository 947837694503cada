package fanout

import (
	"crypto/rand"
	"math/big"
)

const (
	// CodeLength — длина кода подтверждения.
	CodeLength = 12

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator выдаёт случайный код подтверждения.
type CodeGenerator func() (string, error)

// RandomCode генерирует код из [A-Z0-9] длины CodeLength через crypto/rand.
func RandomCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
