package main

import (
	"github.com/berkist/linkroyale/core/internal/app"
	"github.com/berkist/linkroyale/core/internal/config"
)

// @title LinkRoyale Core API
// @version 1.0
// @description Room-scoped link contest engine.
// @BasePath /api/v1
func main() {
	app.Go(config.Load())
}
