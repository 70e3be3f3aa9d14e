// Package privacy contains helpers for keeping personal identifiers out of
// logs while preserving enough signal for abuse investigation.
package privacy

import "strings"

// AnonymizeIP truncates an IP address for logging. IPv4 keeps the first two
// octets; IPv6 keeps the first two groups.
func AnonymizeIP(ip string) string {
	if ip == "" {
		return ""
	}
	if strings.Contains(ip, ":") && !strings.Contains(ip, ".") {
		parts := strings.Split(ip, ":")
		if len(parts) >= 2 {
			return parts[0] + ":" + parts[1] + "::/32"
		}
		return ip
	}
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".x.x"
	}
	return ip
}

// MaskPhone hides the middle digits of a normalized phone number.
// "+821012345678" becomes "+8210****5678".
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return "****"
	}
	return phone[:5] + "****" + phone[len(phone)-4:]
}
