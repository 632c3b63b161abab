package complaint

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
)

const (
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeDigits  = "0123456789"

	// maxCodeAttempts bounds the draws made for a single code.
	maxCodeAttempts = 64
	// maxInsertAttempts bounds the transactions retried after a code collision at insert time.
	maxInsertAttempts = 3
)

var (
	ErrCodeSpaceExhausted = errors.New("could not generate a unique code")
	// ErrCodeTaken is returned by repositories when an inserted code already exists.
	ErrCodeTaken = errors.New("code already taken")
)

// randomCode draws three uppercase letters followed by three digits. Mockable in tests.
var randomCode = func() string {
	b := make([]byte, 6)
	for i := 0; i < 3; i++ {
		b[i] = codeLetters[rand.Intn(len(codeLetters))]
	}
	for i := 3; i < 6; i++ {
		b[i] = codeDigits[rand.Intn(len(codeDigits))]
	}
	return string(b)
}

// generateCode draws codes until `taken` reports a free one, within a bounded number of attempts.
func generateCode(ctx context.Context, taken func(ctx context.Context, code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := randomCode()
		exists, err := taken(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "checking code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// IsValidCode tells whether s has the shape of a generated code.
func IsValidCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	for i := 3; i < 6; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
