// Package api holds the published API description of the service.
package api

import _ "embed"

// UsersOpenAPI is the OpenAPI 3 document for the /users resource.
//
//go:embed users.openapi.json
var UsersOpenAPI []byte
