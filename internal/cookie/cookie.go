// Package cookie reads values out of an ambient cookie store.
package cookie

import (
	"net/http"
	"net/url"
	"strings"
)

// CSRFCookieName is the cookie carrying the backend's anti-forgery token.
const CSRFCookieName = "csrftoken"

// Source exposes a cookie store serialized as "k1=v1; k2=v2".
// The boolean is false when no store exists at all.
type Source interface {
	CookieString() (string, bool)
}

// Header is a raw Cookie request header used as a store.
type Header string

func (h Header) CookieString() (string, bool) {
	return string(h), h != ""
}

// Jar serializes the cookies an http.CookieJar would send to URL.
type Jar struct {
	Jar http.CookieJar
	URL *url.URL
}

func (j Jar) CookieString() (string, bool) {
	if j.Jar == nil || j.URL == nil {
		return "", false
	}

	cookies := j.Jar.Cookies(j.URL)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}

	return strings.Join(parts, "; "), len(parts) > 0
}

// Lookup returns the decoded value of the first entry named name.
// Entries are split on ';' and trimmed; values are percent-decoded.
func Lookup(cookies, name string) (string, bool) {
	if cookies == "" {
		return "", false
	}

	prefix := name + "="
	for _, entry := range strings.Split(cookies, ";") {
		entry = strings.TrimSpace(entry)
		if !strings.HasPrefix(entry, prefix) {
			continue
		}

		value, err := url.PathUnescape(entry[len(prefix):])
		if err != nil {
			return "", false
		}
		return value, true
	}

	return "", false
}

// LookupSource runs Lookup against a store; a nil store has no cookies.
func LookupSource(src Source, name string) (string, bool) {
	if src == nil {
		return "", false
	}

	cookies, ok := src.CookieString()
	if !ok {
		return "", false
	}

	return Lookup(cookies, name)
}

// AntiForgeryToken reads the csrftoken entry from a store.
func AntiForgeryToken(src Source) (string, bool) {
	return LookupSource(src, CSRFCookieName)
}
