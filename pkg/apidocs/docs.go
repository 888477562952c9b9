// Package apidocs registers the gateway's Swagger document with swag.
package apidocs

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
        "/auth/v1/signup": {
            "post": {
                "description": "Creates an account and signs it in. The response is the new session.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Register an account",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/session"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/auth/v1/token": {
            "post": {
                "description": "Exchanges email and password for a session. Only the password grant is supported.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Sign in",
                "parameters": [
                    {"type": "string", "in": "query", "name": "grant_type", "required": true, "enum": ["password"]},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/auth/v1/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Ends the session the bearer token belongs to.",
                "tags": ["Auth"],
                "summary": "Sign out",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/auth/v1/session": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the session the bearer token belongs to.",
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "properties": {"session": {"$ref": "#/definitions/session"}}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/auth/v1/user": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/identity"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Changes display name and avatar URL. Omitted fields are kept.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Update profile",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"data": {"$ref": "#/definitions/metadata"}}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/identity"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/auth/v1/recover": {
            "post": {
                "description": "Always succeeds and never reveals whether the address is registered.",
                "consumes": ["application/json"],
                "tags": ["Auth"],
                "summary": "Request a password reset",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"email": {"type": "string"}}}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/v1/audit": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "List the caller's auth events",
                "parameters": [
                    {"type": "string", "in": "query", "name": "type"},
                    {"type": "integer", "in": "query", "name": "limit"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/auditEvent"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/rest/v1/{table}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the caller's rows. Filters use field=eq.value; order=field.desc sorts.",
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "Select rows",
                "parameters": [
                    {"type": "string", "in": "path", "name": "table", "required": true},
                    {"type": "string", "in": "query", "name": "order"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Inserts one object or an array of objects owned by the caller and returns the stored rows.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "Insert rows",
                "parameters": [
                    {"type": "string", "in": "path", "name": "table", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "description": "Merges the body into the caller's row. A missing or foreign id returns an empty array.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tables"],
                "summary": "Update a row",
                "parameters": [
                    {"type": "string", "in": "path", "name": "table", "required": true},
                    {"type": "string", "in": "query", "name": "id", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Removes the caller's rows matching every filter. Matching nothing succeeds.",
                "tags": ["Tables"],
                "summary": "Delete rows",
                "parameters": [
                    {"type": "string", "in": "path", "name": "table", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns all of the caller's notes, projects, tasks, todo lists and reports.",
                "produces": ["application/json"],
                "tags": ["Notebook"],
                "summary": "Export notebook data",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/import": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Re-creates an exported snapshot under the caller with fresh ids.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Notebook"],
                "summary": "Import notebook data",
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/notes": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "List notes",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Create a note",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/notes/{id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Update a note",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Delete a note",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/projects": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "List projects",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Create a project",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/projects/{id}": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Rename a project",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Delete a project with its tasks, reports and templates",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/tasks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "List tasks",
                "parameters": [
                    {"in": "query", "name": "project_id", "type": "string"}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Create a task",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/tasks/{id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Update a task",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Delete a task and its subtasks",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/todo-lists": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "List todo lists with items",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Create a todo list",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/todo-lists/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Delete a todo list and its items",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/todo-lists/{id}/items": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Add a todo item",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/todo-items/{id}": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Update a todo item",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notebook"],
                "summary": "Delete a todo item",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/reports/daily": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reports"],
                "summary": "List daily reports",
                "parameters": [
                    {"in": "query", "name": "project_id", "type": "string"}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reports"],
                "summary": "Save the daily report for a project and date",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/reports/weekly": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reports"],
                "summary": "List weekly reports",
                "parameters": [
                    {"in": "query", "name": "project_id", "type": "string"}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reports"],
                "summary": "Save the weekly report for a project and week",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/templates": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reports"],
                "summary": "List report templates",
                "parameters": [
                    {"in": "query", "name": "project_id", "type": "string"}
                ],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reports"],
                "summary": "Save a report template",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}
                ],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/notebook/v1/templates/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Reports"],
                "summary": "Delete a report template",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        }
    },
    "definitions": {
        "credentials": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "data": {"$ref": "#/definitions/metadata"}
            }
        },
        "metadata": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "avatar_url": {"type": "string"}
            }
        },
        "identity": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "user_metadata": {"$ref": "#/definitions/metadata"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "session": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "refresh_token": {"type": "string"},
                "expires_in": {"type": "integer"},
                "expires_at": {"type": "integer"},
                "user": {"$ref": "#/definitions/identity"}
            }
        },
        "auditEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"},
                "type": {"type": "string"},
                "user_id": {"type": "string"},
                "email": {"type": "string"},
                "success": {"type": "boolean"},
                "error_message": {"type": "string"},
                "remote_addr": {"type": "string"}
            }
        },
        "error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "AI Notebook API",
	Description:      "Auth emulator and owner-scoped table store for the notebook app.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
