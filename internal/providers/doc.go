// Package providers implements the HTTP transport for external AI providers.
//
// Every configured provider exposes an OpenAI-compatible chat completions
// endpoint. The transport translates a routing request into that wire format,
// authenticates with a per-provider bearer token, and converts failures into
// the provider error class the router's fallback chain understands.
package providers
