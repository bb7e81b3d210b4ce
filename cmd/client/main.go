package main

import (
	"context"
	"errors"
	"fmt"
	log "github.com/schollz/logger"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"proxichat/core/lib/audio"
	"proxichat/core/lib/client"
	"proxichat/core/lib/config"
	"proxichat/core/lib/device"
	"proxichat/core/lib/packet"
	"syscall"
	"time"
)

// Captured audio is read from stdin and the mixed audio is written to stdout,
// both as raw little-endian float32 PCM.
func main() {
	c := config.DefaultClient()
	err := config.Load("client", &c, os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.SetLevel(c.LogLevel)

	if err = run(c); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(c config.Client) error {
	var relayIdentity device.Identity
	if c.RelayIdentity != "" {
		var err error
		if relayIdentity, err = device.ParseIdentity(c.RelayIdentity); err != nil {
			return err
		}
	}
	driver := client.NewDriver(client.Options{
		Identity:      packet.Identity(c.Identity),
		Device:        &audio.StreamDevice{In: os.Stdin, Out: os.Stdout},
		DialTimeout:   c.DialTimeout,
		RelayIdentity: relayIdentity,
		MaxBacklog:    c.MaxBacklog,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := driver.Connect(ctx, c.Relay); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ticker := time.NewTicker(c.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			if err := driver.Drive(); err != nil {
				return err
			}
		}
	})
	group.Go(func() error {
		<-ctx.Done()
		driver.Disconnect()
		return nil
	})
	return group.Wait()
}
