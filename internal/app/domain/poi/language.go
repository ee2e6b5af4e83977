package poi

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

// NormalizeLanguage canonicalises a BCP 47 tag ("PT-br" -> "pt-BR").
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty language code: %w", models.ErrValidation)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("language code %q: %w", code, models.ErrValidation)
	}
	return tag.String(), nil
}

// lookupChain lists the codes tried for a localized read, most specific first.
// "pt-BR" yields ["pt-BR", "pt"].
func lookupChain(code string) []string {
	tag, err := language.Parse(code)
	if err != nil {
		return []string{code}
	}
	chain := []string{tag.String()}
	if base, conf := tag.Base(); conf != language.No && base.String() != tag.String() {
		chain = append(chain, base.String())
	}
	return chain
}

// PreferredLanguage picks the first parseable tag from an Accept-Language
// header, or fallback when there is none.
func PreferredLanguage(acceptLanguage, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	return tags[0].String()
}
