package apiclient

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// recordingJar wraps a cookie jar and keeps the attributes the jar does not
// hand back: a jar's Cookies returns only name and value, and only for the
// queried path. The recorded copies are what gets persisted between runs.
type recordingJar struct {
	inner http.CookieJar
	now   func() time.Time

	mu      sync.Mutex
	cookies map[cookieKey]*http.Cookie
}

type cookieKey struct {
	name string
	path string
}

func newRecordingJar(inner http.CookieJar) *recordingJar {
	return &recordingJar{
		inner:   inner,
		now:     time.Now,
		cookies: make(map[cookieKey]*http.Cookie),
	}
}

// SetCookies stores the cookies in the wrapped jar and records them.
func (j *recordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		path := c.Path
		if path == "" || !strings.HasPrefix(path, "/") {
			path = defaultCookiePath(u.Path)
		}
		key := cookieKey{name: c.Name, path: path}

		expires := c.Expires
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, key)
			continue
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if !expires.IsZero() && !expires.After(now) {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = &http.Cookie{Name: c.Name, Value: c.Value, Path: path, Expires: expires}
	}
}

// Cookies delegates to the wrapped jar.
func (j *recordingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// recorded returns copies of the unexpired cookies ordered by name and path.
func (j *recordingJar) recorded() []*http.Cookie {
	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*http.Cookie, 0, len(j.cookies))
	for key, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			delete(j.cookies, key)
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].Path < out[b].Path
	})
	return out
}

// defaultCookiePath is the RFC 6265 default-path of a request path.
func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
