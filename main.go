package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"iqdb/internal/config"
	"iqdb/internal/engine"
	"iqdb/internal/errlog"
	"iqdb/internal/httpapi"
	"iqdb/internal/ingest"
	"iqdb/internal/store"
)

func main() {
	dataDir := parseDataDirFlag()

	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "compute":
			runCompute(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		}
	}

	runServe(dataDir)
}

// parseDataDirFlag extracts the --datadir flag from command line arguments.
func parseDataDirFlag() string {
	for i, arg := range os.Args {
		if strings.HasPrefix(arg, "--datadir=") {
			return strings.TrimPrefix(arg, "--datadir=")
		}
		if arg == "--datadir" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return "./data"
}

// parsePortFlag extracts the --port or -p flag from command line arguments.
func parsePortFlag() int {
	for i, arg := range os.Args {
		if strings.HasPrefix(arg, "--port=") {
			if port, err := strconv.Atoi(strings.TrimPrefix(arg, "--port=")); err == nil {
				return port
			}
		}
		if (arg == "--port" || arg == "-p") && i+1 < len(os.Args) {
			if port, err := strconv.Atoi(os.Args[i+1]); err == nil {
				return port
			}
		}
	}
	return 0
}

// parseBindFlag extracts the --bind flag from command line arguments.
func parseBindFlag() string {
	for i, arg := range os.Args {
		if strings.HasPrefix(arg, "--bind=") {
			return strings.TrimPrefix(arg, "--bind=")
		}
		if arg == "--bind" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return ""
}

func printUsage() {
	fmt.Println(`Usage:
  iqdb                              Start the HTTP service (default port 8080)
  iqdb --bind=<addr>                Listen address (e.g. 0.0.0.0, ::, 127.0.0.1)
  iqdb --port=<port>                Listen port (or -p <port>)
  iqdb --datadir=<path>             Data directory (default ./data)
  iqdb compute <image>              Print the signature hash of an image file
  iqdb import <sqlite-path>         Bulk-load an existing images table
  iqdb help                         Show this help`)
}

// runCompute prints the textual signature of an image file, the external
// collaborator's output the engine consumes.
func runCompute(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: iqdb compute <image>")
		os.Exit(1)
	}
	f, err := os.Open(args[0])
	if err != nil {
		log.Fatalf("open %s: %v", args[0], err)
	}
	defer f.Close()

	img, err := ingest.DecodeImage(f)
	if err != nil {
		log.Fatalf("decode %s: %v", args[0], err)
	}
	sig := ingest.ComputeSignature(img)
	fmt.Println(sig.Format())
}

// runImport opens the store at the given path and loads every row into a
// throwaway engine to validate that it indexes cleanly. Nothing is copied
// into the service's own data directory.
func runImport(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: iqdb import <sqlite-path>")
		os.Exit(1)
	}
	st, err := store.Open(args[0])
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	records, err := st.Load()
	if err != nil {
		log.Fatalf("load store: %v", err)
	}
	eng := engine.New()
	for _, rec := range records {
		if err := eng.Insert(rec.ID, rec.Sig); err != nil {
			log.Fatalf("insert %d: %v", rec.ID, err)
		}
	}
	fmt.Printf("imported %d images from %s\n", eng.ImageCount(), args[0])
}

// runServe starts the HTTP service: load the store, rebuild the in-memory
// engine from it, register the API surface, and serve until SIGINT/SIGTERM.
func runServe(dataDir string) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("create data directory: %v", err)
	}
	if err := errlog.Init(dataDir + "/log"); err != nil {
		log.Printf("error log init failed: %v", err)
	}
	defer errlog.Close()

	cfgManager := config.NewManager(dataDir + "/config.json")
	if err := cfgManager.Load(); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := cfgManager.Get()

	if bind := parseBindFlag(); bind != "" {
		cfg.Server.Bind = bind
	}
	if port := parsePortFlag(); port != 0 {
		cfg.Server.Port = port
	}

	dbPath := cfg.Store.DBPath
	if !strings.Contains(dbPath, "/") {
		dbPath = dataDir + "/" + dbPath
	}
	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	eng := engine.New()
	records, err := st.Load()
	if err != nil {
		log.Fatalf("load store: %v", err)
	}
	for _, rec := range records {
		if err := eng.Insert(rec.ID, rec.Sig); err != nil {
			log.Fatalf("rebuild index for %d: %v", rec.ID, err)
		}
	}
	log.Printf("loaded %d images from %s", eng.ImageCount(), dbPath)

	app := httpapi.NewApp(eng, st, cfgManager)
	mux := http.NewServeMux()
	app.Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Bind, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdownSignal()
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// waitForShutdownSignal blocks until SIGINT or SIGTERM arrives.
func waitForShutdownSignal() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
