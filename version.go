package escrow

import _ "embed"

// Version is the release of this module, stamped from the VERSION file.
//
//go:embed VERSION
var Version string
