package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	reactorecho "github.com/markity/reactor-echo"
)

func main() {
	cfg := reactorecho.DefaultConfig()
	cfg.Log.Level = "warn"
	flag.IntVar(&cfg.Port, "port", 8000, "server port")
	flag.Parse()

	logger, flush, err := reactorecho.NewLogger(cfg.Log)
	if err != nil {
		os.Exit(1)
	}
	defer flush()

	server := reactorecho.NewServer(cfg, logger)
	if err := server.Initialize(); err != nil {
		logger.Fatal("initialize", zap.Error(err))
	}
	if err := server.Run(); err != nil {
		logger.Error("run", zap.Error(err))
	}
}
