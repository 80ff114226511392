// Package docs registers the OpenAPI document served under /swagger.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed swagger.json
var swaggerJSON string

type embeddedDoc struct{}

func (embeddedDoc) ReadDoc() string {
	return swaggerJSON
}

func init() {
	swag.Register(swag.Name, embeddedDoc{})
}
