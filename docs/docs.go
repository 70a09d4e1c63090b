// Package docs registra la especificación OpenAPI servida en /swagger/.
package docs

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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/accounts/register": {
            "post": {
                "tags": ["accounts"],
                "summary": "Create a vet or owner account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {"201": {"description": "created"}, "400": {"description": "invalid input"}, "409": {"description": "username taken"}}
            }
        },
        "/accounts/me": {
            "get": {"tags": ["accounts"], "summary": "Current account", "responses": {"200": {"description": "ok"}, "401": {"description": "unauthorized"}}}
        },
        "/owners": {
            "get": {"tags": ["owners"], "summary": "List owners", "parameters": [{"in": "query", "name": "q", "type": "string"}], "responses": {"200": {"description": "ok"}}},
            "post": {"tags": ["owners"], "summary": "Create owner", "responses": {"201": {"description": "created"}, "400": {"description": "invalid input"}}}
        },
        "/owners/{ownerID}": {
            "get": {"tags": ["owners"], "summary": "Get owner", "parameters": [{"in": "path", "name": "ownerID", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}, "404": {"description": "not found"}}},
            "patch": {"tags": ["owners"], "summary": "Update owner", "parameters": [{"in": "path", "name": "ownerID", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}
        },
        "/pets": {
            "get": {"tags": ["pets"], "summary": "List pets", "parameters": [{"in": "query", "name": "owner_id", "type": "string"}, {"in": "query", "name": "q", "type": "string"}], "responses": {"200": {"description": "ok"}}},
            "post": {"tags": ["pets"], "summary": "Create pet", "responses": {"201": {"description": "created"}, "422": {"description": "unknown owner"}}}
        },
        "/pets/{petID}": {
            "get": {"tags": ["pets"], "summary": "Get pet", "parameters": [{"in": "path", "name": "petID", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}},
            "patch": {"tags": ["pets"], "summary": "Update pet profile", "parameters": [{"in": "path", "name": "petID", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}
        },
        "/appointments": {
            "get": {"tags": ["appointments"], "summary": "List appointments", "parameters": [{"in": "query", "name": "status", "type": "string"}, {"in": "query", "name": "pet_id", "type": "string"}, {"in": "query", "name": "from", "type": "string"}, {"in": "query", "name": "to", "type": "string"}], "responses": {"200": {"description": "ok"}}},
            "post": {"tags": ["appointments"], "summary": "Schedule appointment", "responses": {"201": {"description": "created"}}}
        },
        "/medical-records": {
            "get": {"tags": ["records"], "summary": "List medical records", "parameters": [{"in": "query", "name": "pet_id", "type": "string"}, {"in": "query", "name": "q", "type": "string"}], "responses": {"200": {"description": "ok"}}},
            "post": {"tags": ["records"], "summary": "Create medical record", "responses": {"201": {"description": "created"}}}
        },
        "/prescriptions": {
            "get": {"tags": ["records"], "summary": "List prescriptions", "parameters": [{"in": "query", "name": "pet_id", "type": "string"}, {"in": "query", "name": "active", "type": "boolean"}], "responses": {"200": {"description": "ok"}}},
            "post": {"tags": ["records"], "summary": "Create prescription", "responses": {"201": {"description": "created"}}}
        },
        "/notifications": {
            "get": {"tags": ["notifications"], "summary": "List my notifications", "responses": {"200": {"description": "ok"}}}
        },
        "/database/sync/": {
            "get": {
                "tags": ["sync"],
                "summary": "Snapshot info (checksum, counts, schema version)",
                "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/SyncInfo"}}}
            }
        },
        "/database/download/": {
            "get": {
                "tags": ["sync"],
                "summary": "Download gzip snapshot",
                "produces": ["application/gzip"],
                "responses": {"200": {"description": "snapshot", "headers": {"X-Snapshot-Checksum": {"type": "string"}, "X-Snapshot-Version": {"type": "integer"}}}}
            }
        },
        "/database/upload/": {
            "post": {
                "tags": ["sync"],
                "summary": "Replace data with an uploaded snapshot",
                "consumes": ["multipart/form-data", "application/gzip"],
                "parameters": [
                    {"in": "formData", "name": "database", "type": "file"},
                    {"in": "header", "name": "X-Snapshot-Checksum", "type": "string"}
                ],
                "responses": {"200": {"description": "replaced"}, "400": {"description": "invalid snapshot"}, "422": {"description": "checksum mismatch"}}
            }
        },
        "/sync/offline-changes/": {
            "get": {"tags": ["sync"], "summary": "List journaled offline changes", "responses": {"200": {"description": "ok"}}},
            "post": {
                "tags": ["sync"],
                "summary": "Apply offline changes",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/OfflineChanges"}}],
                "responses": {"200": {"description": "per-change results"}}
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "role": {"type": "string", "enum": ["vet", "owner"]},
                "full_name": {"type": "string"}
            }
        },
        "SyncInfo": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string"},
                "last_sync": {"type": "string"},
                "db_type": {"type": "string"},
                "sync_method": {"type": "string"},
                "schema_version": {"type": "integer"},
                "tables": {"type": "array", "items": {"type": "string"}},
                "counts": {"type": "object", "additionalProperties": {"type": "integer"}},
                "checksum": {"type": "string"}
            }
        },
        "OfflineChanges": {
            "type": "object",
            "properties": {
                "changes": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "type": {"type": "string", "enum": ["create", "update", "delete"]},
                            "model": {"type": "string", "enum": ["appointment", "medical_record", "prescription"]},
                            "id": {"type": "string"},
                            "data": {"type": "object"}
                        }
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "ePetCare API",
	Description:      "Vet portal API and database synchronization endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
