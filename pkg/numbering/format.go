package numbering

import (
	"fmt"
	"strings"
	"time"
)

// yearPlaceholder is substituted with the four-digit issue year.
const yearPlaceholder = "%Y"

// FormatNumber renders the human-readable document number: the prefix
// template with the issue year substituted, followed by the counter value
// left-zero-padded to padWidth. Values wider than padWidth are not truncated.
func FormatNumber(prefixTemplate string, padWidth int, value int64, issuedAt time.Time) string {
	prefix := strings.ReplaceAll(prefixTemplate, yearPlaceholder, issuedAt.UTC().Format("2006"))
	return prefix + fmt.Sprintf("%0*d", padWidth, value)
}
