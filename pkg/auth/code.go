package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	codeKeyInfo = "yamdb confirmation code v1"
	codeSigLen  = 20
	clockSkew   = time.Minute
)

// CodeSubject is the user state a confirmation code is bound to. Any change
// to it (most importantly LastLogin, stamped on confirmation) invalidates
// every code issued before.
type CodeSubject struct {
	UserID    int64
	Email     string
	Confirmed bool
	LastLogin *time.Time
}

// CodeGenerator issues and checks confirmation codes of the form
// "<base36 unix seconds>-<hex hmac>". Codes are stateless: nothing is stored
// server-side.
type CodeGenerator struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCodeGenerator derives the signing key from secret.
func NewCodeGenerator(secret string, ttl time.Duration) (*CodeGenerator, error) {
	if secret == "" {
		return nil, errors.New("code secret cannot be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("code ttl must be positive")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(codeKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive code key: %w", err)
	}
	return &CodeGenerator{key: key, ttl: ttl, now: time.Now}, nil
}

// Generate returns a fresh code for sub.
func (g *CodeGenerator) Generate(sub CodeSubject) string {
	ts := g.now().Unix()
	return strconv.FormatInt(ts, 36) + "-" + g.sign(sub, ts)
}

// Verify reports whether code was issued for sub's current state and has
// not expired.
func (g *CodeGenerator) Verify(sub CodeSubject, code string) bool {
	tsPart, sig, ok := strings.Cut(strings.TrimSpace(code), "-")
	if !ok || tsPart == "" || sig == "" {
		return false
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return false
	}
	issued := time.Unix(ts, 0)
	now := g.now()
	if issued.After(now.Add(clockSkew)) || now.Sub(issued) > g.ttl {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(g.sign(sub, ts)))
}

func (g *CodeGenerator) sign(sub CodeSubject, ts int64) string {
	var lastLogin int64
	if sub.LastLogin != nil {
		lastLogin = sub.LastLogin.UTC().Unix()
	}
	mac := hmac.New(sha256.New, g.key)
	fmt.Fprintf(mac, "%d|%s|%t|%d|%d", sub.UserID, strings.ToLower(sub.Email), sub.Confirmed, lastLogin, ts)
	return hex.EncodeToString(mac.Sum(nil)[:codeSigLen])
}
