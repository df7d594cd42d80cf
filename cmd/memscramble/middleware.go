package main

import (
	"net/http"
	"regexp"
)

var playerIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// requirePlayer rejects requests whose {player} URL parameter is not a
// well-formed player ID before the handler runs.
func requirePlayer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !playerIDRe.MatchString(urlParam(r, "player")) {
			http.Error(w, "invalid player id", http.StatusBadRequest)
			return
		}
		next(w, r)
	}
}
