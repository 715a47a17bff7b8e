package main

import "github.com/swaggo/swag"

// docTemplate describes the public api in swagger 2.0 format. It is served
// under /swagger/ once registered into swag.
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
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Get the service status",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/users": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Register a user, overwriting any account with the same username",
                "parameters": [{"in": "body", "name": "user", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/UserView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/v1/sessions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get the logged in user, data is null without session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/UserView"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Login, replacing any active session",
                "parameters": [{"in": "body", "name": "credentials", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/UserView"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Logout",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/books": {
            "get": {
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "List all books or search them",
                "parameters": [{"in": "query", "name": "q", "type": "string", "description": "title, author or isbn term"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Book"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Create a book",
                "parameters": [{"in": "body", "name": "book", "required": true, "schema": {"$ref": "#/definitions/Book"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Book"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/APIError"}},
                    "503": {"description": "Maintenance", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/v1/books/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Get a book",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Book"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Update an existing book",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "book", "required": true, "schema": {"$ref": "#/definitions/Book"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Book"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/APIError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/APIError"}},
                    "503": {"description": "Maintenance", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Delete a book, unknown ids succeed",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Maintenance", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/v1/catalog/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Get the status of the latest catalog operation",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/CatalogState"}}}
            }
        }
    },
    "definitions": {
        "Author": {
            "type": "object",
            "properties": {"name": {"type": "string"}}
        },
        "Book": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "isbn": {"type": "string"},
                "authors": {"type": "array", "items": {"$ref": "#/definitions/Author"}},
                "authorNames": {"type": "string", "description": "comma separated, used when authors is empty"},
                "genre": {"type": "string"},
                "coverImage": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "CatalogState": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["idle", "loading", "succeeded", "failed"]},
                "error": {"type": "string"},
                "total": {"type": "integer"}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "surname": {"type": "string"},
                "username": {"type": "string"},
                "phone": {"type": "string"},
                "gender": {"type": "string"},
                "password": {"type": "string"},
                "confirmPassword": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "UserView": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "surname": {"type": "string"},
                "username": {"type": "string"},
                "phone": {"type": "string"},
                "gender": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "requestid": {"type": "string"},
                "status": {"type": "integer"},
                "message": {"type": "string"},
                "data": {}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Bookshelf API",
	Description:      "Personal book catalog with local accounts and a single login session.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
