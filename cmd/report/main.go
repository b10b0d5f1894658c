// Command report prints the rendered risk dashboard to a PDF using a
// headless browser, for mailing around or archiving.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"marketlens/internal/config"
	"marketlens/internal/infrastructure"
	"marketlens/internal/snapshot"
)

func main() {
	url := flag.String("url", "", "dashboard URL (defaults to the local server's /risk/html)")
	outDir := flag.String("out", "", "output directory (defaults to the configured snapshot dir)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	cfg.Logging.Output = "stdout"

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("initialize logger", "error", err)
		os.Exit(1)
	}

	if *url == "" {
		*url = fmt.Sprintf("http://localhost:%d/risk/html", cfg.Server.Port)
	}
	if *outDir == "" {
		*outDir = cfg.Snapshot.OutDir
	}

	capturer := snapshot.NewCapturer(*outDir, cfg.Snapshot.Timeout, logger)
	path, err := capturer.Capture(context.Background(), *url)
	if err != nil {
		logger.Error("capture failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Println(path)
}
