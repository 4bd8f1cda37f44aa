package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/inklet-dev/inklet/board"
	"github.com/inklet-dev/inklet/relay"
)

const InkletCtlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Inklet control.

Headless client for inspecting and poking a shared drawing session.

Usage:
    inkletctl watch --relay_url=<relay_url> [--session=<session>] [--token=<token>]
    inkletctl draw --relay_url=<relay_url> [--session=<session>] [--token=<token>]
        --shape=<shape> [--attrs=<attrs>]
    inkletctl clear --relay_url=<relay_url> [--session=<session>] [--token=<token>]
    inkletctl mint-token --auth_key=<auth_key> --session=<session> [--ttl=<ttl>]

Options:
    -h --help                Show this screen.
    --version                Show version.
    --relay_url=<relay_url>  Relay websocket endpoint, e.g. ws://localhost:8090/ws
    --session=<session>      Session name [default: default].
    --token=<token>          Join token, if the relay requires one.
    --shape=<shape>          Shape type: rect, line, ellipse, path.
    --attrs=<attrs>          Extra attributes as a json object.
    --auth_key=<auth_key>    Relay auth key.
    --ttl=<ttl>              Token lifetime [default: 24h].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], InkletCtlVersion)
	if err != nil {
		panic(err)
	}

	if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	} else if draw_, _ := opts.Bool("draw"); draw_ {
		draw(opts)
	} else if clear_, _ := opts.Bool("clear"); clear_ {
		clear(opts)
	} else if mintToken_, _ := opts.Bool("mint-token"); mintToken_ {
		mintToken(opts)
	}
}

func connect(opts docopt.Opts, store *board.SceneStore) *board.Session {
	relayUrl, _ := opts.String("--relay_url")
	sessionName, _ := opts.String("--session")
	token, _ := opts.String("--token")

	session, err := board.NewSessionWithDefaults(
		context.Background(),
		store,
		relayUrl,
		sessionName,
		token,
	)
	if err != nil {
		Err.Fatalf("connect: %s", err)
	}

	connected := make(chan string, 1)
	unsub := session.AddConnectCallback(func(isConnected bool, connectionId string) {
		if isConnected {
			select {
			case connected <- connectionId:
			default:
			}
		}
	})
	defer unsub()

	select {
	case connectionId := <-connected:
		Out.Printf("connected as %s", connectionId)
	case <-session.Done():
		Err.Fatalf("connection failed")
	case <-time.After(15 * time.Second):
		Err.Fatalf("connect timeout")
	}
	return session
}

func watch(opts docopt.Opts) {
	store := board.NewSceneStore()
	unsub := store.AddMutationCallback(func(mutation board.Mutation) {
		attrs, _ := json.Marshal(mutation.Attrs)
		Out.Printf("%s %s %s %s", mutation.Origin, mutation.Kind, mutation.Identity, attrs)
	})
	defer unsub()

	session := connect(opts, store)
	defer session.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-session.Done():
		Out.Printf("disconnected")
	}
}

func draw(opts docopt.Opts) {
	shape, _ := opts.String("--shape")
	attrs := board.AttributeBag{
		"type": shape,
	}
	if attrsJson, err := opts.String("--attrs"); err == nil && attrsJson != "" {
		extra := board.AttributeBag{}
		if err := json.Unmarshal([]byte(attrsJson), &extra); err != nil {
			Err.Fatalf("parse attrs: %s", err)
		}
		for key, value := range extra {
			attrs[key] = value
		}
	}

	store := board.NewSceneStore()
	session := connect(opts, store)
	defer session.Close()

	identity, _ := store.Add(board.SceneObject{
		Attrs: attrs,
	}, board.OriginUser)
	Out.Printf("added %s", identity)

	// give the fire-and-forget send a moment to flush
	time.Sleep(500 * time.Millisecond)
}

func clear(opts docopt.Opts) {
	store := board.NewSceneStore()
	session := connect(opts, store)
	defer session.Close()

	n := store.Clear(board.OriginUser)
	Out.Printf("cleared %d local objects", n)

	time.Sleep(500 * time.Millisecond)
}

func mintToken(opts docopt.Opts) {
	authKey, _ := opts.String("--auth_key")
	sessionName, _ := opts.String("--session")
	ttlStr, _ := opts.String("--ttl")
	if ttlStr == "" {
		ttlStr = "24h"
	}
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		Err.Fatalf("parse ttl: %s", err)
	}

	token, err := relay.MintJoinToken([]byte(authKey), sessionName, ttl)
	if err != nil {
		Err.Fatalf("mint: %s", err)
	}
	Out.Printf("%s", token)
}
