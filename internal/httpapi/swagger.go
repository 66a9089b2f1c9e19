//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"
	httpSwagger "github.com/swaggo/http-swagger"
)

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/resources": {
            "get": {
                "produces": ["application/json"],
                "summary": "List mounted resources",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ResourcesResponse"}}}
            }
        },
        "/healthz": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "ok"}}}},
        "/readyz": {"get": {"summary": "Readiness probe", "responses": {"200": {"description": "ready"}, "503": {"description": "loading"}}}}
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}
        },
        "types.Resource": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "table": {"type": "string"},
                "actions": {"type": "array", "items": {"type": "string"}},
                "listeners": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.ResourcesResponse": {
            "type": "object",
            "properties": {"resources": {"type": "array", "items": {"$ref": "#/definitions/types.Resource"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "crudd API",
	Description:      "Configurable CRUD resources over HTTP.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the Swagger UI and doc.json under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
