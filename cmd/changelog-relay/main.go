// Command changelog-relay posts new GitHub changelog entries to a Slack
// channel and remembers the newest relayed entry between runs.
//
// In automation mode (the default) the previous watermark is read from the
// first artifact of the latest completed run of WORKFLOW_NAME; the workflow is
// expected to upload TIMESTAMP_FILE as that artifact after each run. With
// --local the watermark is read from and written to TIMESTAMP_FILE only and
// the settings come from a required .env file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to a process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	return 0
}
