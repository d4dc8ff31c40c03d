package myhttp

import (
	"fmt"
	"net/http"
	"os"
)

// GuessHostnameWithScheme is for code that needs a public url without having
// an http request at hand, like topic subscriptions created at startup.
func GuessHostnameWithScheme() string {
	if hostname := os.Getenv("PUBLIC_HOSTNAME"); hostname != "" {
		return hostname
	}

	return "http://localhost:8080"
}

func HostnameWithScheme(r *http.Request) string {
	if hostname := os.Getenv("PUBLIC_HOSTNAME"); hostname != "" {
		return hostname
	}

	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
