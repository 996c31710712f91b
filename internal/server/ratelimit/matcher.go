package ratelimit

import (
	"strings"
)

// unlimited lists routes that are never rate limited.
var unlimited = []EndpointConfig{
	{Path: "/health", Method: "GET"},
	{Path: "/files/", Method: "GET"},
}

// MatchEndpoint matches a request path and method to an endpoint configuration.
// Returns the matching EndpointConfig or nil if no match is found.
// Paths ending in "/" match by prefix (e.g., "/delete-example/" matches
// "/delete-example/{id}").
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if ec := match(path, method, unlimited); ec != nil {
		return &EndpointConfig{Path: ec.Path, Method: ec.Method}
	}
	return match(path, method, configs)
}

func match(path, method string, configs []EndpointConfig) *EndpointConfig {
	for i := range configs {
		config := &configs[i]
		if config.Path == path && config.Method == method {
			return config
		}
	}

	for i := range configs {
		config := &configs[i]
		if config.Method == method && strings.HasSuffix(config.Path, "/") && strings.HasPrefix(path, config.Path) {
			return config
		}
	}
	return nil
}
