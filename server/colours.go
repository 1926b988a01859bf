package server

import "net/http"

// ANSI colours for the DEV console request log
const (
	red        = "\033[31m"
	green      = "\033[32m"
	yellow     = "\033[33m"
	blue       = "\033[34m"
	magenta    = "\033[35m"
	cyan       = "\033[36m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:     green,
	http.MethodPost:    blue,
	http.MethodPut:     cyan,
	http.MethodDelete:  yellow,
	http.MethodPatch:   magenta,
	http.MethodOptions: gray,
}

func methodColor(method string) string {
	if c, ok := methodColors[method]; ok {
		return c
	}
	return gray
}

// statusColor groups responses: redirects and successes green, client errors yellow, server errors red
func statusColor(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return red
	case status >= http.StatusBadRequest:
		return yellow
	default:
		return green
	}
}
