// Package orderid issues human-readable order identifiers of the form
// PREFIX-YYYYMMDD-NNNN. The format is durable: it is sent to the payment
// provider as the merchant order reference.
package orderid

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "INV"

const dateLayout = "20060102"

// Next returns the identifier that follows prev on the calendar day of now.
// The sequence restarts at 1 when prev is empty, malformed, carries another
// prefix, or belongs to a different day.
func Next(prefix, prev string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	today := now.Format(dateLayout)
	seq := 1

	if parts := strings.Split(prev, "-"); len(parts) == 3 && parts[0] == prefix && parts[1] == today {
		if n, err := strconv.Atoi(parts[2]); err == nil && n >= 0 {
			seq = n + 1
		}
	}

	return fmt.Sprintf("%s-%s-%04d", prefix, today, seq)
}

// Prefix returns the prefix of a well-formed id, or "" for anything else.
func Prefix(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] == "" {
		return ""
	}
	if _, err := time.Parse(dateLayout, parts[1]); err != nil {
		return ""
	}
	return parts[0]
}
