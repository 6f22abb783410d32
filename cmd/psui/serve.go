package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/michalCapo/p-sui/pkg/live"
	"github.com/michalCapo/p-sui/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		metrics    bool
		tracing    bool
		autoReload bool
		watch      []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the live patch server with a demo clock page",
		Long: `Start the live patch server.

The root page renders a clock that updates once a second through the
patch pipeline. Open it in several tabs of the same browser to watch
a single session fan out to every tab.

Examples:
  psui serve
  psui serve --addr :8080 --metrics
  psui serve --autoreload --watch ./pages`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr, metrics, tracing, autoReload, watch)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":1422", "Listen address")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics at /metrics")
	cmd.Flags().BoolVar(&tracing, "tracing", false, "Trace HTTP requests with OpenTelemetry")
	cmd.Flags().BoolVar(&autoReload, "autoreload", false, "Reload browsers when watched files change")
	cmd.Flags().StringSliceVar(&watch, "watch", nil, "Directories to watch for --autoreload")

	return cmd
}

const clockPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>psui clock</title>
` + server.ScriptTag + `
</head>
<body>
<h1>Server clock</h1>
<div id="clock">starting...</div>
</body>
</html>`

func runServe(ctx context.Context, addr string, metrics, tracing, autoReload bool, watch []string) error {
	srv := server.New(&server.Config{
		Address:       addr,
		EnableMetrics: metrics,
		EnableTracing: tracing,
		AutoReload:    autoReload,
		WatchPaths:    watch,
	})

	srv.Router().Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, clockPage)

		session := server.SessionID(r.Context())
		stop := server.Interval(time.Second, func() {
			srv.QueuePatch(session, live.Patch{
				TargetID: "clock",
				Swap:     live.SwapInline,
				HTML:     time.Now().Format("15:04:05"),
			}, nil)
		})
		// The ticker stops itself when the clock element leaves the
		// page, since the client reports the target as invalid.
		srv.QueuePatch(session, live.Patch{
			TargetID: "clock",
			Swap:     live.SwapInline,
			HTML:     time.Now().Format("15:04:05"),
		}, stop)
	})

	return srv.Run(ctx)
}
