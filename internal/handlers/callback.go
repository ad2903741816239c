package handlers

import (
	"errors"
	"net/http"

	"sproutbot/internal/services"
)

// OAuthCallback receives the browser redirect from the site. Whatever
// happens inside, the browser gets a page; classification into the page
// text happens here and nowhere else.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		renderFailure(w, "Required parameters are missing. Start the link again from the chat.")
		return
	}

	result, err := h.linker.CompleteLink(r.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenInvalid):
			renderFailure(w, "This link has expired or was already used. Send /bind for a fresh one.")
		case errors.Is(err, services.ErrAlreadyLinked):
			renderFailure(w, "Your chat account is already linked to a site account.")
		case errors.Is(err, services.ErrLinkConflict):
			renderFailure(w, "That site account is already linked to a different chat account.")
		default:
			h.log.WithError(err).Error("oauth callback failed")
			renderFailure(w, "Something went wrong while talking to the site. Please try again.")
		}
		return
	}
	renderSuccess(w, result.Reward)
}
