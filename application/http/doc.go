// Package http implements the client side of HTTP/1.x messaging:
// requests are encoded onto a writer, responses are decoded incrementally
// as bytes arrive from the transport.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
