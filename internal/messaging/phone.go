package messaging

import (
	"strings"

	"github.com/wolfman30/flowbridge/internal/relay"
)

// SMSDomain is the chat-identifier domain used for SMS partners.
const SMSDomain = "sms"

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// RemoteJID builds the partner identifier for a phone number
// ("+1 555 123 4567" -> "15551234567@sms").
func RemoteJID(phone string) string {
	digits := sanitizePhone(phone)
	if digits == "" {
		return ""
	}
	return digits + "@" + SMSDomain
}

// PhoneFromJID returns the E.164 number of a partner identifier.
func PhoneFromJID(remoteJID string) string {
	return NormalizeE164(relay.PartnerNumber(remoteJID))
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
