package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	log "github.com/schollz/logger"
	"github.com/spf13/pflag"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"net"
	"net/http"
	"os"
	"os/signal"
	"proxichat/core/lib/config"
	"proxichat/core/lib/device"
	"proxichat/core/lib/relay"
	"proxichat/core/lib/roster"
	"proxichat/core/lib/transport"
	"syscall"
)

func main() {
	c := config.DefaultRelay()
	err := config.Load("server", &c, os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.SetLevel(c.LogLevel)

	if c.GenerateKey {
		err = generateKey(c.KeyFile)
	} else {
		err = run(c)
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func generateKey(path string) error {
	key, err := device.GenerateKeyPair(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	if err = key.Save(path); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	fmt.Println(key.Public)
	return nil
}

func run(c config.Relay) error {
	var key *device.KeyPair
	if c.KeyFile != "" {
		loaded, err := device.LoadKeyPair(c.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load key: %w", err)
		}
		key = &loaded
		log.Infof("relay: identity %v", key.Public)
	}

	participants := roster.New()
	if c.Roster != "" {
		loaded, err := roster.Load(c.Roster)
		if err != nil {
			return fmt.Errorf("failed to load roster: %w", err)
		}
		participants = loaded
		log.Infof("relay: loaded %v participants", participants.Len())
	}
	var verifier relay.Verifier = participants
	if c.AllowAll {
		verifier = relay.AllowAll
	}
	var mixer relay.Mixer = relay.SumMixer{}
	if c.Mixer == config.MixerProximity {
		mixer = &relay.ProximityMixer{Locator: participants, Range: c.Range}
	}

	var feedListener net.Listener
	if c.FeedAddress != "" {
		listener, err := net.Listen("tcp", c.FeedAddress)
		if err != nil {
			return fmt.Errorf("failed to listen for the roster feed: %w", err)
		}
		feedListener = netutil.LimitListener(listener, c.FeedConnections)
	}
	listener, err := transport.Listen(c.Address())
	if err != nil {
		if feedListener != nil {
			_ = feedListener.Close()
		}
		return fmt.Errorf("failed to listen: %w", err)
	}
	server := relay.NewServer(listener, relay.ServerOptions{
		Key:              key,
		HandshakeTimeout: c.HandshakeTimeout,
	})
	sessions := relay.NewListener(server.Sessions(), relay.Options{
		Verifier:    verifier,
		Mixer:       mixer,
		MaxSessions: c.MaxConnections,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	group, ctx := errgroup.WithContext(ctx)
	group.Go(server.Serve)
	group.Go(func() error {
		return sessions.Run(ctx, c.TickInterval)
	})
	group.Go(func() error {
		<-ctx.Done()
		return server.Close()
	})
	if feedListener != nil {
		feed := &http.Server{Handler: roster.NewFeed(participants, c.FeedToken)}
		group.Go(func() error {
			log.Infof("roster: feed listening on %v", feedListener.Addr())
			if err := feed.Serve(feedListener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			return feed.Close()
		})
	}
	log.Infof("relay: listening on %v", server.Addr())
	err = group.Wait()
	log.Info("relay: stopped")
	return err
}
