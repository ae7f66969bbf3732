package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/seawatch-io/seawatch/cmd/seawatch-relay/app"
)

func main() {
	app.NewApp().Run()
}
