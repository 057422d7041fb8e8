package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/spf13/pflag"

	"github.com/quransn/academy/apps/api/di"
	echoapi "github.com/quransn/academy/apps/api/echo"
	"github.com/quransn/academy/core"
)

func main() {
	// =========================================================================
	// Configuration

	conf := core.NewConfig()

	flags := pflag.NewFlagSet("api", pflag.ExitOnError)
	flags.StringVar(&conf.Server.Address, "addr", conf.Server.Address, "address the API listens on")
	flags.StringVar(&conf.Storage.Engine, "storage", conf.Storage.Engine, "storage engine: bolt, memory or postgres")
	seed := flags.Bool("seed", true, "create the default admin, library and forum when missing")
	_ = flags.Parse(os.Args[1:])

	// =========================================================================
	// Set up Dependencies

	c, err := di.New(conf)
	if err != nil {
		di.NewLogger("API : ", conf).Fatal(fmt.Sprintf("setting up dependencies: %v", err), err)
	}
	logger := c.Logger
	defer func() {
		if err = c.DB.Close(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	logger.Info(fmt.Sprintf("Application initializing : version %q, storage %q", conf.Build, conf.Storage.Engine))
	defer logger.Info("Application stopped")

	if *seed {
		if err = di.Seed(context.Background(), c.DB, c.UserSvc, logger); err != nil {
			logger.Fatal(fmt.Sprintf("seeding: %v", err), err)
		}
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Jobs & API Service

	if c.Scheduler != nil {
		c.Scheduler.Start()
	}

	server := echoapi.NewServer(c.ServerDeps())
	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}

	// give outstanding requests and running jobs a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	// asking listener to shutdown and shed load
	if err = server.Shutdown(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = server.Close(); err != nil {
			logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
	if c.Scheduler != nil {
		if err = c.Scheduler.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop jobs: %v", err), err)
		}
	}
}
