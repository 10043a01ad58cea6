// Package schemas embeds the JSON schemas of the websocket protocol.
package schemas

import _ "embed"

//go:embed hello.schema.json
var Hello string

//go:embed auth.schema.json
var Auth string

//go:embed call.schema.json
var Call string

//go:embed result.schema.json
var Result string
