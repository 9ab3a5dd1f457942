// Package api implements the HTTP REST API and WebSocket server for the
// Android TV bridge.
//
// This package provides:
//   - REST endpoints for config entries, setup and options flows, and LAN discovery
//   - Player state, commands, services and screen captures
//   - WebSocket hub for real-time player state broadcasts
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server sits beside the MQTT bridge. Both drive the same players:
// commands from the API pass through the bridge's dispatcher, so they are
// counted, written to telemetry and followed by a state publish exactly like
// commands from Core. State changes published by the bridge are relayed to
// WebSocket clients subscribed to "player.state_changed".
//
// # Security
//
// When api.auth_enabled is set, every route except /api/v1/health requires a
// bearer token signed with security.jwt.secret (HS256). Tokens are issued by
// Core. WebSocket connections use single-use tickets from
// POST /api/v1/ws-ticket so tokens never appear in URLs.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
