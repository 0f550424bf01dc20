package client

import (
	"http-keepalive/application/http"

	"golang.org/x/net/http/httpguts"
)

const (
	tokenKeepAlive = "keep-alive"
	tokenClose     = "close"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-9.3
func decideKeepAlive(persistent bool, version http.Version, connection []string) bool {
	if !persistent {
		return false
	}

	switch version {
	case http.Version10:
		return httpguts.HeaderValuesContainsToken(connection, tokenKeepAlive)
	case http.Version11:
		return !httpguts.HeaderValuesContainsToken(connection, tokenClose)
	default:
		return false
	}
}
