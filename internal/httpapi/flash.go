package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"crudd/internal/crud"
)

const flashCookie = "crudd_flash"

// cookieFlash carries flash messages across a redirect in a cookie.
type cookieFlash struct {
	crud.FlashBag
	carried int
}

// readFlash seeds a bag with the messages left by the previous response.
func readFlash(r *http.Request) *cookieFlash {
	f := &cookieFlash{}
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return f
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return f
	}
	var msgs []crud.FlashMessage
	if json.Unmarshal(raw, &msgs) != nil {
		return f
	}
	for _, m := range msgs {
		f.Set(m)
	}
	f.carried = len(msgs)
	return f
}

// write stores the queued messages when resp redirects and clears the
// cookie once carried messages were rendered.
func (f *cookieFlash) write(w http.ResponseWriter, resp *crud.Response) {
	msgs := f.Messages("")
	if resp != nil && resp.Location() != "" && len(msgs) > 0 {
		raw, err := json.Marshal(msgs)
		if err != nil {
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookie,
			Value:    base64.RawURLEncoding.EncodeToString(raw),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		return
	}
	if f.carried > 0 {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	}
}
