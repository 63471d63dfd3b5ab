package outbound

import "net/http"

// CookieJar is implemented by transports that keep transport-level session
// material (session and refresh cookies) so it can be persisted between runs.
type CookieJar interface {
	// Cookies returns the cookies currently held for the API base URL.
	Cookies() []*http.Cookie
	// SetCookies loads cookies for the API base URL.
	SetCookies(cookies []*http.Cookie)
}
