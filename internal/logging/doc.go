// Package logging configures structured slog output for swiftsearch.
//
// Logs are JSON lines written to a size-rotated file under ~/.swiftsearch/logs/
// and, unless the process owns stdout for a protocol (MCP over stdio), to stderr.
// Log events use snake_case names with typed attributes. Index keys are never
// logged.
package logging
