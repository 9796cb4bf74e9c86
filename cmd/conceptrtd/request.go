package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var flagPayloadJSON string

var requestCmd = &cobra.Command{
	Use:   "request <method>",
	Short: "Send a request to a running `serve` instance and print the response",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequest,
}

func init() {
	requestCmd.Flags().StringVar(&flagPayloadJSON, "payload", "{}",
		"JSON object merged into the request as the payload")
}

func runRequest(cmd *cobra.Command, args []string) error {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(flagPayloadJSON), &payload); err != nil {
		return fmt.Errorf("invalid --payload: %w", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"method":  args[0],
		"payload": payload,
	})

	resp, err := http.Post(flagAddr+"/api/request", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	printJSON(out)

	if resp.StatusCode >= 400 || out["error"] != nil && out["error"] != "" {
		os.Exit(1)
	}
	return nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
