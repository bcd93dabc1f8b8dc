package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/preschool/apps/api/di/dig"
	echoapi "github.com/trezcool/preschool/apps/api/echo"
	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/plan"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
	digestsvc "github.com/trezcool/preschool/services/digest"
	logsvc "github.com/trezcool/preschool/services/logger"
)

type appParams struct {
	dig.In
	Conf       *core.Config
	Logger     *logsvc.Logger
	APILogger  core.Logger
	DBLogger   core.Logger          `name:"dbLogger"`
	CloseDB    dig_container.Closer `name:"dbCloser"`
	CloseCache dig_container.Closer `name:"cacheCloser"`
	Validate   *validator.Validate
	Translator ut.Translator
	Digest     *digestsvc.Scheduler
	Server     *echoapi.Server
}

func main() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(p appParams) {
	conf, apiLogger, server := p.Conf, p.APILogger, p.Server

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer p.Logger.Close()

	core.InitValidators(p.Validate, p.Translator)
	user.InitValidators(p.Validate, p.Translator)
	student.InitValidators(p.Validate, p.Translator)
	progress.InitValidators(p.Validate, p.Translator)
	plan.InitValidators(p.Validate, p.Translator)

	core.ParseEmailTemplates(apiLogger)

	user.LoadCommonPasswords(apiLogger)

	defer func() {
		if err := p.CloseDB(); err != nil {
			p.DBLogger.Error("Failed to close", err)
		}
	}()
	defer func() {
		if err := p.CloseCache(); err != nil {
			apiLogger.Error("Failed to close cache", err)
		}
	}()
	defer apiLogger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Progress Digest

	if conf.Digest.Enabled {
		if err := p.Digest.Start(); err != nil {
			apiLogger.Fatal(fmt.Sprintf("could not schedule progress digest: %v", err), err)
		}
		defer p.Digest.Stop()
		apiLogger.Info(fmt.Sprintf("progress digest scheduled: %q", conf.Digest.Schedule))
	}

	// =========================================================================
	// Start API Service

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
