package format

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ISO639_1 normalizes a two or three letter language code to the two
// letter form used in VobSub index files.
func ISO639_1(code string) (string, error) {
	b, err := language.ParseBase(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("format: language %q: %w", code, err)
	}
	return b.String(), nil
}

// ISO639_2 normalizes a two or three letter language code to the three
// letter form used in BDN XML files.
func ISO639_2(code string) (string, error) {
	b, err := language.ParseBase(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("format: language %q: %w", code, err)
	}
	return b.ISO3(), nil
}
