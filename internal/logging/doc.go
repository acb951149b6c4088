// Package logging provides file-based structured logging with size-based
// rotation for codivex. Setup writes JSON log lines to a rotating file
// (by default ~/.codivex/logs/server.log) and, when WriteToStderr is set,
// a copy to stderr. A Viewer reads, filters and follows the log files.
package logging
