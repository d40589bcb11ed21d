package sioclient

import (
	"net/url"
	"strings"
)

const rootNamespace = "/"

func normalizeNamespace(name string) string {
	if name == "" {
		return rootNamespace
	}
	if !strings.HasPrefix(name, "/") {
		return "/" + name
	}
	return name
}

// namespaceFromURL picks the namespace the entrypoint socket joins: an
// explicit option wins, then the path of the server address.
func namespaceFromURL(host, explicit string) string {
	if explicit != "" {
		return normalizeNamespace(explicit)
	}

	u, err := url.Parse(host)
	if err != nil || u.Path == "" {
		return rootNamespace
	}
	return normalizeNamespace(strings.TrimSuffix(u.Path, "/"))
}
