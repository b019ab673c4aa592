package subscribers

import "strings"

// NormalizePhone converts a North American number in any common notation
// to E.164 (+1XXXXXXXXXX).
func NormalizePhone(raw string) (string, bool) {
	digits := digitsOf(raw)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return "+1" + digits, true
}

// MaskPhone keeps the first four and last four characters of a phone number
// for logs: +15551234567 becomes +155***4567.
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return "***"
	}
	return phone[:4] + "***" + phone[len(phone)-4:]
}

// FormatPhone renders +15551234567 as +1 (555) 123-4567. Other numbers are
// returned unchanged.
func FormatPhone(phone string) string {
	d := digitsOf(phone)
	if len(d) != 11 || d[0] != '1' {
		return phone
	}
	return "+1 (" + d[1:4] + ") " + d[4:7] + "-" + d[7:]
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
