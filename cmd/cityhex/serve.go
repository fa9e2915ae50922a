package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cityhex/cityhex/internal/metrics"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a generated map locally",
		Long:  "serve exposes the map at /, a health check at /healthz and the server's own Go runtime metrics at /metrics.\n" +
			"Metrics of a map run are not kept in the server; pass the file written by map --metrics-file to expose it at /metrics/run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mapPath, _ := cmd.Flags().GetString("map")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")
			port, _ := cmd.Flags().GetInt("port")
			autoOpen, _ := cmd.Flags().GetBool("open")
			log := commandLogger(cmd, "serve")
			return startServer(cmd.Context(), mapPath, metricsFile, port, autoOpen, cmd.OutOrStdout(), log)
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("map", "output_map.html", "Map HTML file to serve")
	cmd.Flags().Int("port", 0, "Port for the server (0 selects a random port)")
	cmd.Flags().Bool("open", false, "Open the map in your default browser")
	cmd.Flags().String("metrics-file", "", "Textfile written by map --metrics-file, served at /metrics/run (/metrics only has server runtime metrics)")
	return cmd
}

func startServer(parentCtx context.Context, mapPath, metricsFile string, port int, autoOpen bool, out io.Writer, log zerolog.Logger) error {
	absPath, err := filepath.Abs(mapPath)
	if err != nil {
		return fmt.Errorf("resolve map path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("map file: %w", err)
	}
	if metricsFile != "" {
		if metricsFile, err = filepath.Abs(metricsFile); err != nil {
			return fmt.Errorf("resolve metrics path: %w", err)
		}
		if _, err := os.Stat(metricsFile); err != nil {
			return fmt.Errorf("metrics file: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt)
	defer stop()

	prov := metrics.New(metrics.BuildInfo{Version: version, Commit: commit}, true)

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           newServeRouter(absPath, metricsFile, prov, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	url := fmt.Sprintf("http://%s", listener.Addr().String())
	fmt.Fprintf(out, "Map available at %s\n", url)

	if autoOpen {
		if err := openBrowser(url); err != nil {
			fmt.Fprintf(out, "(failed to open browser: %v)\n", err)
		}
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	case serveErr := <-errCh:
		if serveErr != nil {
			return serveErr
		}
	}

	return nil
}

// newServeRouter serves the map, a health check and the server's own metrics.
// When metricsFile is set, the textfile of a map run is served at /metrics/run.
func newServeRouter(mapPath, metricsFile string, prov *metrics.Provider, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeFile(w, req, mapPath)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	r.Handle("/metrics", prov.Handler())
	if metricsFile != "" {
		r.Get("/metrics/run", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
			http.ServeFile(w, req, metricsFile)
		})
	}
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
