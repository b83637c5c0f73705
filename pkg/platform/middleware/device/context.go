// Package device describes the client software behind a request.
package device

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// Agent is the browser and operating system parsed from a User-Agent header.
type Agent struct {
	Browser string
	OS      string
}

type contextKeyAgent struct{}

// Parse extracts browser name with version and the OS. An empty header yields
// the zero Agent.
func Parse(raw string) Agent {
	if strings.TrimSpace(raw) == "" {
		return Agent{}
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	return Agent{
		Browser: strings.TrimSpace(name + " " + version),
		OS:      strings.TrimSpace(ua.OS()),
	}
}

// String renders a display name such as "Chrome 120.0.0.0 on Intel Mac OS X 10_15_7".
func (a Agent) String() string {
	if a == (Agent{}) {
		return "Unknown Device"
	}
	return strings.TrimSpace(a.Browser + " on " + a.OS)
}

// Middleware parses the User-Agent once per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithAgent(r.Context(), Parse(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithAgent injects a parsed agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithAgent(ctx context.Context, agent Agent) context.Context {
	return context.WithValue(ctx, contextKeyAgent{}, agent)
}

// AgentFromContext returns the agent set by Middleware, if any.
func AgentFromContext(ctx context.Context) (Agent, bool) {
	agent, ok := ctx.Value(contextKeyAgent{}).(Agent)
	return agent, ok
}
