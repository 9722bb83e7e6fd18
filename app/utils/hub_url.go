package utils

import "strings"

// HubPort is the fixed port the hub API listens on
const HubPort = "8000"

// HubBaseURL derives the hub API base URL from a bare address or URL.
// "hub.local" becomes "http://hub.local:8000"; an explicit http:// or
// https:// scheme is kept.
func HubBaseURL(hubAddress string) string {
	addr := strings.TrimSpace(hubAddress)
	addr = strings.TrimRight(addr, "/")
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr + ":" + HubPort
}
