package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
)

var watchCommand = &cli.Command{
	Name:   "watch",
	Usage:  "Follow live mutation events (SSE)",
	Action: watch,
}

func watch(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	body, err := app.client.StreamEvents(streamCtx)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer body.Close()

	fmt.Println("Watching tree events, Ctrl-C to stop")

	scanner := bufio.NewScanner(body)
	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			fmt.Printf("[%s] %s\n", eventName, strings.TrimPrefix(line, "data: "))
		}
	}

	if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}
