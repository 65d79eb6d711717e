// Package output provides output formatting for CLI commands.
//
// Commands register a --output flag with AddFormatFlag and hand their result
// to a Formatter, which renders it as text, JSON or YAML. Values that know how
// to print themselves for humans implement TextWriter.
package output
