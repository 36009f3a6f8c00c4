package app

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	coreapp "github.com/ftl/wsprglobe/core/app"
	"github.com/ftl/wsprglobe/core/share"
	"github.com/ftl/wsprglobe/ui/web"
)

const shutdownTimeout = 5 * time.Second

// Run the application until it receives SIGINT or SIGTERM. An optional argument holds the parameters of a share
// link that are applied on startup, e.g. "rx=DL1ABC&heatmap=1".
func Run(controller *coreapp.Controller, args []string) {
	a := &application{controller: controller}
	a.startup(args)
	defer a.shutdown()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-signals:
		log.Printf("received %v", s)
	case err := <-a.serveErr:
		log.Printf("server stopped: %v", err)
	}
}

type application struct {
	controller *coreapp.Controller
	stream     *web.Stream
	store      *share.Store
	server     *http.Server
	serveErr   chan error
}

func (a *application) startup(args []string) {
	configuration := a.controller.Configuration()

	a.stream = web.NewStream()
	a.controller.SetView(a.stream)
	a.controller.Startup()

	var shortener web.Shortener
	if configuration.ShortlinkDB != "" {
		store, err := share.Open(configuration.ShortlinkDB)
		if err != nil {
			log.Printf("short links are not available: %v", err)
		} else {
			a.store = store
			shortener = store
		}
	}

	gin.SetMode(gin.ReleaseMode)
	server := web.NewServer(a.controller, a.stream, shortener, configuration.PublicURL)
	a.server = &http.Server{
		Addr:              configuration.HTTPAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.serveErr = make(chan error, 1)
	go func() {
		log.Printf("listening on %s", configuration.HTTPAddress)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.serveErr <- err
		}
	}()

	if len(args) > 1 {
		a.applyLink(args[1])
	}
}

func (a *application) applyLink(link string) {
	if i := strings.Index(link, "?"); i >= 0 {
		link = link[i+1:]
	}
	values, err := url.ParseQuery(link)
	if err != nil {
		log.Printf("invalid link parameters %q: %v", link, err)
		return
	}
	_, autoLoad, err := a.controller.ApplyLink(values)
	if err != nil {
		log.Print(err)
		return
	}
	if !autoLoad {
		return
	}
	go func() {
		if err := a.controller.Load(context.Background()); err != nil {
			log.Print(err)
		}
	}()
}

func (a *application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	a.controller.Shutdown()
	if a.store != nil {
		a.store.Close()
	}
}
