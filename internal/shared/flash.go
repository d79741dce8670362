package shared

import "net/http"

// RedirectWithFlash queues a flash on the request session and answers 303.
func RedirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// Flashes drains the request session's queued messages. Never nil.
func Flashes(r *http.Request) []FlashMessage {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		return []FlashMessage{}
	}
	if out := sess.DrainFlashes(); out != nil {
		return out
	}
	return []FlashMessage{}
}
