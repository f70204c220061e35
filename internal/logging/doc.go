// Package logging provides file-based logging with rotation for the
// pipeline. The root dpr command calls SetupDefault on every run, which
// writes debug-level JSON logs to ~/.dpr/logs/pipeline.log and to stderr.
// There is no flag that turns this off or lowers the level.
package logging
