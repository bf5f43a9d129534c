// Package configs provides embedded starter configuration templates.
//
// The templates are embedded in the binary so that `ocspkit config init`
// can write them without any installed files. Users copy and customize
// them; the responder never reads these directly.
package configs

import (
	_ "embed"
)

// Responder is the starter responder configuration, documenting every
// setting `ocspkit serve --config` understands.
//
//go:embed responder.yaml
var Responder []byte

// HSM is the starter PKCS#11 configuration for HSM-backed response
// signing, referenced from the responder configuration's hsm block.
//
//go:embed hsm.yaml
var HSM []byte
