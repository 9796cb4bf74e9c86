package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var flagTraceJSON bool
var flagTraceFailedOnly bool

var traceCmd = &cobra.Command{
	Use:   "trace <flowId>",
	Short: "Reconstruct and print a flow's causal tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func init() {
	traceCmd.Flags().BoolVar(&flagTraceJSON, "json", false, "print the trace as JSON instead of a tree")
	traceCmd.Flags().BoolVar(&flagTraceFailedOnly, "failed", false, "elide subtrees that completed ok")
}

func runTrace(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	q.Set("flow", args[0])
	if flagTraceFailedOnly {
		q.Set("failed", "true")
	}
	if flagTraceJSON {
		q.Set("format", "json")
	} else {
		q.Set("format", "pretty")
	}

	resp, err := http.Get(flagAddr + "/api/trace?" + q.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
	return nil
}
