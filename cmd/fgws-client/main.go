// Command fgws-client is a minimal demo client: it connects to a
// foxglove.websocket.v1 server, subscribes to every advertised channel,
// and logs incoming messages until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adred-codev/fgws/internal/wsclient"
)

func main() {
	addr := flag.String("addr", "localhost:8765", "server host:port")
	path := flag.String("path", "/", "server path")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := wsclient.Dial(ctx, *addr, *path)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer engine.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	subscribed := make(map[uint32]uint32) // channelID -> subscriptionID

	for {
		select {
		case ev, ok := <-engine.Events():
			if !ok {
				return
			}
			handleEvent(engine, ev, subscribed)
			if ev.Kind == wsclient.EventClose {
				return
			}
		case <-sigCh:
			engine.Close()
			return
		}
	}
}

func handleEvent(engine *wsclient.Engine, ev wsclient.Event, subscribed map[uint32]uint32) {
	switch ev.Kind {
	case wsclient.EventOpen:
		fmt.Println("connected")

	case wsclient.EventServerInfo:
		fmt.Printf("serverInfo: name=%s sessionId=%s capabilities=%v\n",
			ev.ServerInfo.Name, ev.ServerInfo.SessionID, ev.ServerInfo.Capabilities.List())

	case wsclient.EventAdvertise:
		for _, ch := range ev.Advertise.Channels {
			if _, ok := subscribed[ch.ID]; ok {
				continue
			}
			subID, err := engine.Subscribe(ch.ID)
			if err != nil {
				fmt.Printf("subscribe to %q failed: %v\n", ch.Topic, err)
				continue
			}
			subscribed[ch.ID] = subID
			fmt.Printf("subscribed to %q (channel %d, subscription %d)\n", ch.Topic, ch.ID, subID)
		}

	case wsclient.EventMessage:
		fmt.Printf("message: subscription=%d bytes=%d\n", ev.Message.SubscriptionID, len(ev.Message.Data))

	case wsclient.EventStatus:
		fmt.Printf("status[%d]: %s\n", ev.Status.Level, ev.Status.Message)

	case wsclient.EventError:
		fmt.Printf("error: %v\n", ev.Err)

	case wsclient.EventClose:
		fmt.Println("connection closed")
	}
}
