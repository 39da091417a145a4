package api

import (
	"log/slog"
	"net/http"

	"github.com/porterapi/porter/internal/dispatch"
)

// rpcHandler adapts HTTP form posts into dispatch requests and dispatch
// responses back into HTTP.
type rpcHandler struct {
	dispatcher   *dispatch.Dispatcher
	trustProxy   bool
	cookieDomain string
	logger       *slog.Logger
}

// serve handles POST /api. Responses are always 200 with the outcome in
// the envelope; HTTP status codes are reserved for transport failures.
func (h *rpcHandler) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, dispatch.Envelope{
			Success: false,
			Data: &dispatch.ErrorDetail{
				Message: "Request body could not be parsed.",
				Code:    dispatch.CodeInternal,
			},
		})
		return
	}

	secure := isSecure(r, h.trustProxy)

	req := &dispatch.Request{
		Resource:   r.PostFormValue("resource"),
		Method:     r.PostFormValue("method"),
		Arguments:  r.PostFormValue("arguments"),
		APIKey:     r.PostFormValue("api_key"),
		Batch:      r.PostFormValue("batch"),
		SessionKey: sessionKey(r),
		IP:         clientIP(r, h.trustProxy),
		Secure:     secure,
		Raw:        r.PostForm.Encode(),
	}

	resp := h.dispatcher.Dispatch(r.Context(), req)

	for _, c := range resp.Cookies {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			MaxAge:   c.MaxAge,
			Path:     "/",
			Domain:   h.cookieDomain,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if resp.Custom != nil {
		writeRaw(w, resp.Custom.ContentType, resp.Custom.Body)
		return
	}
	writeJSON(w, http.StatusOK, resp.Envelope)
}

// sessionKey reads the session cookie; absent means no session.
func sessionKey(r *http.Request) string {
	c, err := r.Cookie(dispatch.SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
