// Package mcp exposes a Dialogic engine as a Model Context Protocol server,
// so agents can render templates, inspect intents and try out conditions.
package mcp
