package static

import _ "embed"

// RealtimeMd documents the websocket push channel for client developers.
//
//go:embed realtime.md
var RealtimeMd string
