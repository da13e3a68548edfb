// Package server exposes the chat over HTTP: a WebSocket endpoint that hands
// every connection to a session, plus health, metrics and a browser test
// page.
//
// Configuration is read from the environment (optionally seeded from a
// .env file), origin checks guard browser upgrades, and Shutdown tears down
// every live session before closing the hub.
package server
