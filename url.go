package sioclient

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const engineIOVersion = 4

// buildURL turns the user-facing server address into the websocket
// handshake URL. The path of host is ignored; it names a namespace.
func buildURL(host string, opts *Options) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	path := opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path

	query := u.Query()
	query.Set("EIO", strconv.Itoa(engineIOVersion))
	query.Set("transport", TransportWebSocket)
	for key, value := range opts.Query {
		query.Set(key, fmt.Sprint(value))
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
