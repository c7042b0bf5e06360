// Package pii keeps personal data out of log output.
package pii

import "strings"

// MaskEmail hides the local part of an address, keeping its first character
// and the domain so operators can still correlate deliveries:
// "dana@example.com" becomes "d***@example.com".
func MaskEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// MaskRecipientID masks the email portion of recipient ids that embed one,
// such as "oversight:ops@example.com". Ids without an address pass through.
func MaskRecipientID(id string) string {
	prefix, rest, found := strings.Cut(id, ":")
	if !found || !strings.Contains(rest, "@") {
		return id
	}
	return prefix + ":" + MaskEmail(rest)
}
