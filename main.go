package main

import (
	"log"
	"os"

	coreapp "github.com/ftl/wsprglobe/core/app"
	"github.com/ftl/wsprglobe/core/cfg"
	"github.com/ftl/wsprglobe/core/wsprlive"
	uiapp "github.com/ftl/wsprglobe/ui/app"
)

func main() {
	configuration, err := cfg.Load()
	if err != nil {
		log.Println(err)
		configuration = cfg.Static()
	}

	controller := coreapp.New(configuration, wsprlive.NewClient(configuration.APIURL))
	uiapp.Run(controller, os.Args)
}
