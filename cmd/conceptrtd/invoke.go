package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var flagInputJSON string

var invokeCmd = &cobra.Command{
	Use:   "invoke <concept> <action>",
	Short: "Call a concept's action directly, bypassing the sync engine",
	Args:  cobra.ExactArgs(2),
	RunE:  runInvoke,
}

func init() {
	invokeCmd.Flags().StringVar(&flagInputJSON, "input", "{}",
		"JSON object passed as the action's input")
}

func runInvoke(cmd *cobra.Command, args []string) error {
	var input map[string]interface{}
	if err := json.Unmarshal([]byte(flagInputJSON), &input); err != nil {
		return fmt.Errorf("invalid --input: %w", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"concept": args[0],
		"action":  args[1],
		"input":   input,
	})

	resp, err := http.Post(flagAddr+"/api/invoke", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	printJSON(out)

	if variant, _ := out["Variant"].(string); resp.StatusCode >= 400 || variant == "error" {
		os.Exit(1)
	}
	return nil
}
