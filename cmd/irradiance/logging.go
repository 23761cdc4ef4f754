package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/gogpu/irradiance"
	"github.com/gogpu/irradiance/backend"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func setupLogging(ctx *cli.Context) {
	level := slog.LevelWarn
	if ctx.GlobalBool("v") {
		level = slog.LevelInfo
	}
	if ctx.GlobalBool("vv") {
		level = slog.LevelDebug
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	irradiance.SetLogger(logger)
	backend.SetLogger(logger)
}
