package internal

import (
	"regexp"
	"strings"
)

// Canonical placeholder tokens.
const (
	TokenCharacter = "{character}"
	TokenUser      = "{user}"
)

// Card placeholder tokens.
const (
	CardTokenCharacter = "{{char}}"
	CardTokenUser      = "{{user}}"
)

// Archive speaker prefixes.
const (
	ArchivePrefixCharacter = "#{character}:"
	ArchivePrefixUser      = "#{user}:"
)

var (
	cardTokenReplacer = strings.NewReplacer(
		CardTokenCharacter, TokenCharacter,
		CardTokenUser, TokenUser,
	)

	// Double-braced tokens are matched first so they pass through untouched.
	canonicalTokenRe = regexp.MustCompile(`(?i)\{\{(?:char|user)\}\}|\{(character|user)\}`)
)

// ToInternal rewrites card tokens ({{char}}, {{user}}) into canonical tokens.
func ToInternal(text string) string {
	if text == "" {
		return ""
	}
	return cardTokenReplacer.Replace(text)
}

// ToExternal rewrites canonical tokens into card tokens. Matching is case
// insensitive; text that already carries card tokens is left as is, so
// ToExternal(ToInternal(t)) == t whenever t holds no canonical tokens.
func ToExternal(text string) string {
	if text == "" {
		return ""
	}
	return canonicalTokenRe.ReplaceAllStringFunc(text, func(m string) string {
		if strings.HasPrefix(m, "{{") {
			return m
		}
		if strings.EqualFold(m, TokenCharacter) {
			return CardTokenCharacter
		}
		return CardTokenUser
	})
}
