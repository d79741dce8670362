package httpx

import (
	"net/http"
	"strings"
)

// WantsJSON reports whether the caller is a script rather than a browser page.
func WantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// HasJSONBody reports whether the request body is JSON encoded.
func HasJSONBody(r *http.Request) bool {
	return strings.HasPrefix(strings.TrimSpace(r.Header.Get("Content-Type")), "application/json")
}
