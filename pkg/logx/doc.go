// Package logx wraps zerolog behind a small Field/Logger API with
// runtime-swappable sinks: console, append-only file and a rate-limited
// operator chat forwarder.
package logx
