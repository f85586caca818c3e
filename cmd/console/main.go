package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/nusantara/internal/app"
	"github.com/jwebster45206/nusantara/internal/config"
	"github.com/jwebster45206/nusantara/internal/logger"
	"github.com/jwebster45206/nusantara/internal/storage"
)

const logFile = "nusantara-console.log"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// the console drives its own in-process world
	cfg.Local = true

	// keep logs off the terminal UI
	var logOut io.Writer = io.Discard
	if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		defer f.Close()
		logOut = f
	}
	log := logger.SetupWriter(cfg, logOut)

	written, err := storage.WriteSamples(cfg.ScriptsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prepare %s: %v\n", cfg.ScriptsDir, err)
		os.Exit(1)
	}
	for _, name := range written {
		fmt.Printf("Wrote sample script %s\n", name)
	}

	ctx := context.Background()
	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	loopCtx, loopCancel := context.WithCancel(ctx)
	go func() { _ = rt.Run(loopCtx) }()

	effects, unsubscribe := rt.World.Subscribe(256)

	p := tea.NewProgram(NewConsoleUI(newSession(rt), effects, cfg.ColorMarker),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	_, runErr := p.Run()

	unsubscribe()
	loopCancel()
	<-rt.Loop.Done()

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rt.Close(closeCtx)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", runErr)
		os.Exit(1)
	}
}
