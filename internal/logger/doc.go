// Package logger wraps zap for the alarm agent:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and a per-logger level option,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// Every component takes a context and logs through the logger found in it,
// so a sync pass can be tagged with the owner it runs for.
package logger
