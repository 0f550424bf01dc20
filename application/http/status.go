package http

import "fmt"

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-15
var reasonPhrases = map[uint]string{
	100: "Continue",
	101: "Switching Protocols",

	200: "OK",
	201: "Created",
	202: "Accepted",
	203: "Non-Authoritative Information",
	204: "No Content",
	205: "Reset Content",
	206: "Partial Content",

	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	305: "Use Proxy",
	307: "Temporary Redirect",
	308: "Permanent Redirect",

	400: "Bad Request",
	401: "Unauthorized",
	402: "Payment Required",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Content Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	416: "Range Not Satisfiable",
	417: "Expectation Failed",
	418: "I'm a teapot", // Unused. But I like the joke.
	421: "Misdirected Request",
	422: "Unprocessable Content",
	426: "Upgrade Required",

	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
}

// StatusText returns the registered reason phrase of code, or "" if unknown.
func StatusText(code uint) string { return reasonPhrases[code] }

// StatusClass is the first digit of a status code.
type StatusClass uint

const (
	ClassInformational StatusClass = 1
	ClassSuccessful    StatusClass = 2
	ClassRedirection   StatusClass = 3
	ClassClientError   StatusClass = 4
	ClassServerError   StatusClass = 5
)

func ClassOf(code uint) StatusClass { return StatusClass(code / 100) }

// StatusError reports a response whose status is an error.
type StatusError struct {
	Code         uint
	ReasonPhrase string
}

func (e *StatusError) Error() string {
	reason := e.ReasonPhrase
	if reason == "" {
		reason = StatusText(e.Code)
	}
	return fmt.Sprintf("unexpected status: %d %s", e.Code, reason)
}

// CheckStatus returns a [*StatusError] for 4xx and 5xx codes.
func CheckStatus(code uint, reason string) error {
	if c := ClassOf(code); c == ClassClientError || c == ClassServerError {
		return &StatusError{Code: code, ReasonPhrase: reason}
	}
	return nil
}
