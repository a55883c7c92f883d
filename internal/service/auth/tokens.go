// Package auth hashes and verifies API token secrets with Argon2id.
//
// A bearer token is "<token_id>.<secret>"; only the argon2id hash of the
// secret is stored, so a database leak does not leak usable tokens.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the hash cost.
type Argon2Params struct {
	Iterations  uint32
	Memory      uint32
	Parallelism uint8
	SaltLen     int
	KeyLen      uint32
}

var defaultParams = Argon2Params{
	Iterations:  3,
	Memory:      64 * 1024,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashSecret hashes a token secret into the self-describing encoded format
// argon2id$iterations$memory$parallelism$salt$hash.
func HashSecret(secret string) (string, error) {
	p := defaultParams
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(secret), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		p.Iterations, p.Memory, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifySecret checks a token secret against its encoded hash in constant
// time over the hash comparison.
func VerifySecret(secret, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	var par uint8
	if par64 > math.MaxUint8 {
		par = math.MaxUint8
	} else {
		par = uint8(par64)
	}
	actual := argon2.IDKey([]byte(secret), salt, iters, mem, par, defaultParams.KeyLen)
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// SplitToken parses "<token_id>.<secret>"; ok is false on malformed input.
func SplitToken(token string) (id, secret string, ok bool) {
	id, secret, ok = strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return "", "", false
	}
	return id, secret, true
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
