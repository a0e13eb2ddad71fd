package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/amitbl/pharmachat/pkg/chat"
	"github.com/amitbl/pharmachat/pkg/config"
	"github.com/amitbl/pharmachat/pkg/server"
	"github.com/amitbl/pharmachat/pkg/store"
	"github.com/amitbl/pharmachat/pkg/tools"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}
	switch cmd {
	case "serve":
		runServe(args)
	case "chat":
		runChat(args)
	case "hash":
		runHash(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\nusage: pharmachat [serve|chat|hash] [flags]\n", cmd)
		os.Exit(2)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	mgrs := tools.NewManagers(st, cfg.MCP)
	defer func() {
		for _, m := range mgrs {
			m.Close()
		}
	}()
	toolDefs, err := tools.CollectDefs(ctx, mgrs)
	if err != nil {
		log.Fatal(err)
	}
	runner, err := tools.NewRunner(toolDefs)
	if err != nil {
		log.Fatal(err)
	}

	factory, err := cfg.Factory()
	if err != nil {
		log.Fatal(err)
	}
	transport, err := factory.NewTransport(ctx, toolDefs)
	if err != nil {
		log.Fatal(err)
	}

	orch := chat.NewOrchestrator(transport, runner,
		chat.WithMaxIterations(cfg.MaxIterations))
	srv := server.New(orch, st, cfg.LogLevel)

	log.Printf("Listening on %s (model %s, %d tools)",
		cfg.ListenAddr, cfg.ModelName, len(toolDefs))
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, srv.Handler()))
}
