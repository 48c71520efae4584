package mockapi

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

const (
	codeLength = 6
	codeExpiry = 10 * time.Minute
)

type CodePurpose string

const (
	PurposeLogin    CodePurpose = "login"
	PurposeRegister CodePurpose = "register"
)

type codeResult int

const (
	codeOK codeResult = iota
	codeMissing
	codeWrong
	codeExpired
)

type issuedCode struct {
	code      string
	expiresAt time.Time
}

// codeBook holds the email codes currently outstanding, one per purpose and address.
type codeBook struct {
	mu    sync.Mutex
	codes map[string]issuedCode
}

func newCodeBook() *codeBook {
	return &codeBook{codes: make(map[string]issuedCode)}
}

func codeKey(purpose CodePurpose, email string) string {
	return string(purpose) + ":" + strings.ToLower(email)
}

func (b *codeBook) issue(purpose CodePurpose, email string, now time.Time) (string, error) {
	code, err := randomDigits(codeLength)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[codeKey(purpose, email)] = issuedCode{code: code, expiresAt: now.Add(codeExpiry)}
	return code, nil
}

// check consumes the code on success.
func (b *codeBook) check(purpose CodePurpose, email, code string, now time.Time) codeResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := codeKey(purpose, email)
	issued, ok := b.codes[key]
	switch {
	case !ok:
		return codeMissing
	case now.After(issued.expiresAt):
		return codeExpired
	case issued.code != code:
		return codeWrong
	}
	delete(b.codes, key)
	return codeOK
}

func (b *codeBook) peek(purpose CodePurpose, email string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	issued, ok := b.codes[codeKey(purpose, email)]
	return issued.code, ok
}

func randomDigits(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		sb.WriteByte(byte('0' + d.Int64()))
	}
	return sb.String(), nil
}
