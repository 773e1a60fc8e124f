package cmd

import (
	"bytes"

	"github.com/spf13/pflag"
)

// resetFlags restores every flag of rootCmd to its default, clears the
// changed markers and returns a func that also restores swapped writers
// and version globals.
func resetFlags() func() {
	oldStdout, oldLog := stdout, logOutput
	oldVersion, oldCommit, oldDate := Version, Commit, Date

	reset := func() {
		rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
		rootCmd.SetArgs(nil)
	}
	reset()

	return func() {
		reset()
		stdout, logOutput = oldStdout, oldLog
		Version, Commit, Date = oldVersion, oldCommit, oldDate
	}
}

// captureOutput runs f with stdout swapped for a buffer and logs discarded.
func captureOutput(f func()) string {
	out, _ := captureAll(f)
	return out
}

// captureAll runs f and returns what it wrote to stdout and to the log.
func captureAll(f func()) (string, string) {
	oldStdout, oldLog := stdout, logOutput
	var out, logs bytes.Buffer
	stdout, logOutput = &out, &logs
	defer func() { stdout, logOutput = oldStdout, oldLog }()

	f()
	return out.String(), logs.String()
}
