// Command socks5gate runs a standalone SOCKS5 proxy server (RFC 1928, with
// optional RFC 1929 username/password auth). CONNECT is the only supported
// command; BIND and UDP ASSOCIATE are refused.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mehranr/socks5gate/internal/config"
	"github.com/mehranr/socks5gate/internal/logger"
	"github.com/mehranr/socks5gate/internal/server"
)

const defaultConfigFilePath = "./config.toml"

var cfgPathFlag string

func init() {
	flag.StringVar(&cfgPathFlag, "config", defaultConfigFilePath, "path to config file")
	flag.Parse()
}

func main() {
	cfg, err := config.Load(cfgPathFlag)
	if err != nil {
		logger.Fatal(errors.Join(errors.New("failed to load config"), err))
	}

	srv := server.New(cfg)
	if err := srv.Listen(); err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal(err)
	}
	logger.Info("server shut down")
	os.Exit(0)
}
