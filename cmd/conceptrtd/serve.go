package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/conceptrt/conceptrt/kernel"
	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/trace"
)

var flagDataDir string
var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot a kernel with the demonstration concepts behind an HTTP front door",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagDataDir, "data-dir", "",
		"badger directory for a durable action log (default: in-memory)")
	serveCmd.Flags().StringVar(&flagListen, "listen", "127.0.0.1:8080",
		"address to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	k, closeLog, err := buildDemoKernel(log.Logger, flagDataDir)
	if err != nil {
		return err
	}
	defer closeLog()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/request", handleRequest(k))
	mux.HandleFunc("/api/invoke", handleInvoke(k))
	mux.HandleFunc("/api/trace", handleTrace(k))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    flagListen,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", flagListen).Msg("serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

type requestBody struct {
	Method  string       `json:"method"`
	Payload model.Fields `json:"payload"`
}

type requestResponse struct {
	FlowID string      `json:"flowId"`
	Body   interface{} `json:"body,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// handleRequest exposes Kernel.HandleRequest: the HTTP status mirrors resp.Code when set, or 200/502.
func handleRequest(k *kernel.Kernel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := k.HandleRequest(r.Context(), body.Method, body.Payload)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		code := resp.Code
		if code == 0 {
			if resp.Error != "" {
				code = http.StatusBadGateway
			} else {
				code = http.StatusOK
			}
		}
		writeJSON(w, code, requestResponse{
			FlowID: resp.FlowID.String(),
			Body:   resp.Body,
			Error:  resp.Error,
		})
	}
}

type invokeBody struct {
	Concept string       `json:"concept"`
	Action  string       `json:"action"`
	Input   model.Fields `json:"input"`
}

// handleInvoke exposes Kernel.InvokeConcept.
func handleInvoke(k *kernel.Kernel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var body invokeBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		c, err := k.InvokeConcept(r.Context(), body.Concept, body.Action, body.Input)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// handleTrace exposes trace.GetFlowTrace for a flow ID given as the `flow`
// query parameter, honoring `format=json|pretty` and `failed=true`.
func handleTrace(k *kernel.Kernel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET only", http.StatusMethodNotAllowed)
			return
		}
		flowID, err := model.ParseID(r.URL.Query().Get("flow"))
		if err != nil {
			http.Error(w, "invalid flow id", http.StatusBadRequest)
			return
		}
		failedOnly := r.URL.Query().Get("failed") == "true"

		ft, err := trace.GetFlowTrace(k.ActionLog(), flowID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ft == nil {
			http.Error(w, "flow not found", http.StatusNotFound)
			return
		}
		trace.Instrument(opentracing.GlobalTracer(), ft)

		if r.URL.Query().Get("format") == "pretty" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(trace.Pretty(ft, failedOnly)))
			return
		}
		raw, err := trace.JSON(ft, failedOnly)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
