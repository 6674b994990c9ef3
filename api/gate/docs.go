// Package gate registers the gate's Swagger document. Regenerate with
// `swag init -g internal/gate/http/router.go -o api/gate` after changing
// handler annotations.
package gate

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/gatesdk.HealthResponse"}
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/gatesdk.HealthResponse"}
                    },
                    "503": {
                        "description": "A dependency is unavailable",
                        "schema": {"$ref": "#/definitions/gatesdk.HealthResponse"}
                    }
                }
            }
        },
        "/wdb/api/cantaloupe_auth": {
            "post": {
                "description": "Called by the image server delegate for every tile. Tokens are checked before session cookies.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["decision"],
                "summary": "Authorize a tile request",
                "parameters": [
                    {
                        "description": "Tile request context",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/gatesdk.DecisionRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Verdict",
                        "schema": {"$ref": "#/definitions/gatesdk.DecisionResponse"}
                    },
                    "400": {
                        "description": "Malformed body",
                        "schema": {"$ref": "#/definitions/gatesdk.DecisionResponse"}
                    },
                    "404": {
                        "description": "Subsystem not configured",
                        "schema": {"$ref": "#/definitions/gatesdk.DecisionResponse"}
                    },
                    "429": {
                        "description": "Rate limited",
                        "schema": {"$ref": "#/definitions/gatesdk.ErrorResponse"}
                    },
                    "500": {
                        "description": "Check failed",
                        "schema": {"$ref": "#/definitions/gatesdk.DecisionResponse"}
                    }
                }
            }
        },
        "/wdb/api/iiif_token/{page}": {
            "get": {
                "description": "Returns a token bound to the page's image and the calling session's principal.",
                "produces": ["application/json"],
                "tags": ["token"],
                "summary": "Issue a viewer token",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Page ID",
                        "name": "page",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Token and refresh settings",
                        "schema": {"$ref": "#/definitions/gatesdk.AuthContextResponse"}
                    },
                    "403": {
                        "description": "No permission for the page",
                        "schema": {"$ref": "#/definitions/gatesdk.ErrorResponse"}
                    },
                    "404": {
                        "description": "Unknown page or no image",
                        "schema": {"$ref": "#/definitions/gatesdk.ErrorResponse"}
                    },
                    "429": {
                        "description": "Rate limited",
                        "schema": {"$ref": "#/definitions/gatesdk.ErrorResponse"}
                    },
                    "500": {
                        "description": "Issuing failed",
                        "schema": {"$ref": "#/definitions/gatesdk.ErrorResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "gatesdk.AuthContextResponse": {
            "type": "object",
            "properties": {
                "param": {"type": "string"},
                "refresh_url": {"type": "string"},
                "token": {"type": "string"},
                "ttl": {"type": "integer"}
            }
        },
        "gatesdk.DecisionRequest": {
            "type": "object",
            "properties": {
                "client_ip": {"type": "string"},
                "cookies": {"type": "array", "items": {"type": "string"}},
                "identifier": {"type": "string"},
                "request_headers": {"type": "object", "additionalProperties": {"type": "string"}},
                "request_uri": {"type": "string"},
                "token": {"type": "string"}
            }
        },
        "gatesdk.DecisionResponse": {
            "type": "object",
            "properties": {
                "authorized": {"type": "boolean"},
                "reason": {"type": "string"}
            }
        },
        "gatesdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_description": {"type": "string"}
            }
        },
        "gatesdk.HealthChecks": {
            "type": "object",
            "properties": {
                "database": {"type": "string"},
                "secret": {"type": "string"},
                "sessions": {"type": "string"}
            }
        },
        "gatesdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"$ref": "#/definitions/gatesdk.HealthChecks"},
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "WDB IIIF Gate API",
	Description:      "Authorizes tile requests from the image server and issues short lived viewer tokens.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
