package web

import _ "embed"

// IndexHTML is the default remote control page.
//
//go:embed index.html
var IndexHTML []byte
