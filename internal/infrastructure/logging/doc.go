// Package logging builds the service's log/slog logger.
//
// Records are JSON by default (text when logging.format is "text"), go to
// stdout or stderr, and always carry service and version fields. Values
// under password, token, authorization, api_key, jwt and email keys are
// written as [REDACTED], including inside groups and inside decoded
// request bodies passed as map[string]any or []any.
//
//	log := logging.New(cfg.Logging, version)
//	log.With("component", "api").Info("listening", "addr", addr)
//
// Log a user id rather than an email when a request has to be traced back
// to a person.
package logging
