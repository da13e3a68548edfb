// Package main is a terminal client for the chat server. The first line
// typed is the name to register; every later line is a message or command.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1234", "server host:port")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/connect"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		color.Error.Printf("connect to %s: %v\n", u.String(), err)
		os.Exit(1)
	}
	defer conn.Close()

	color.Info.Printf("Connected to %s. Enter your name:\n", u.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				color.Comment.Println("Connection closed.")
				return
			}
			printLine(string(data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				<-done
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				color.Error.Printf("send: %v\n", err)
				return
			}
		}
	}
}

func printLine(line string) {
	switch {
	case strings.HasPrefix(line, "(leave) "), strings.HasSuffix(line, " has joined."):
		color.Comment.Println(line)
	case strings.HasPrefix(line, "Welcome, "):
		color.Success.Println(line)
	case strings.HasPrefix(line, "Username "), strings.HasPrefix(line, "Command `"),
		strings.HasPrefix(line, "Rate limit exceeded"):
		color.Warn.Println(line)
	default:
		fmt.Println(line)
	}
}
