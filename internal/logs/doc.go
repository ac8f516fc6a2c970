// Package logs reads the romgrab log file for the CLI "logs" command.
//
// Last returns the final lines of the file with bounded memory, and Follow
// polls for appended lines until its context is cancelled. Both tolerate a
// missing file so the command works before the first logged run.
package logs
