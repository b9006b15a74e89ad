package shortener

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// CodeLength is the length of a generated short code
const CodeLength = 6

const (
	minAliasLength = 6
	maxAliasLength = 32
)

var (
	ErrAliasLength   = fmt.Errorf("custom alias must be %d to %d characters long", minAliasLength, maxAliasLength)
	ErrAliasFormat   = errors.New("custom alias can only contain letters, numbers, hyphens, and underscores")
	ErrAliasReserved = errors.New("custom alias is reserved")
)

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Aliases that would shadow a route or look like part of the API. Shorter
// words are already rejected by the length check.
var reservedAliases = map[string]bool{
	"search":     true,
	"shorten":    true,
	"health":     true,
	"expiration": true,
	"redirect":   true,
	"status":     true,
}

// Generate derives the short code for an already normalized URL. The code is
// content-addressed: the same URL always yields the same code, so a retried
// create is detected as a conflict instead of producing a second link.
func Generate(normalizedURL string) string {
	sum := md5.Sum([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])[:CodeLength]
}

// ValidateAlias checks a caller-supplied short code
func ValidateAlias(alias string) error {
	if len(alias) < minAliasLength || len(alias) > maxAliasLength {
		return ErrAliasLength
	}
	if !aliasPattern.MatchString(alias) {
		return ErrAliasFormat
	}
	if reservedAliases[strings.ToLower(alias)] {
		return fmt.Errorf("%w: %q", ErrAliasReserved, alias)
	}
	return nil
}
