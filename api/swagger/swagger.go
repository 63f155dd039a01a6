package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Permit Deadline API",
        "description": "Residence-permit roster tracking: elapsed days, renewal deadlines and alert lists.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Datasets", "description": "Workbook sessions"},
        {"name": "Records", "description": "Roster records with derived values"},
        {"name": "Dashboard", "description": "Summary, calendar and alert list"},
        {"name": "Exports", "description": "Processed workbook and alert list exports"}
    ],
    "paths": {
        "/datasets": {
            "post": {
                "tags": ["Datasets"],
                "summary": "Load a roster workbook into a new dataset session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/OpenDatasetRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid path", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Missing column or invalid row", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{handle}": {
            "get": {
                "tags": ["Datasets"],
                "summary": "Describe a dataset session",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Dataset not loaded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Datasets"],
                "summary": "Release a dataset session",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/datasets/{handle}/records": {
            "get": {
                "tags": ["Records"],
                "summary": "List records with derived values",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "category", "in": "query", "type": "string", "enum": ["trainee", "skill1", "skill2", "other"]},
                    {"name": "severity", "in": "query", "type": "string", "enum": ["level1", "level2", "level3", "expired"]},
                    {"name": "q", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Records"],
                "summary": "Append a record",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{handle}/records/{index}": {
            "get": {
                "tags": ["Records"],
                "summary": "Get one record",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "index", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Record not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Records"],
                "summary": "Update a record in place",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "index", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Records"],
                "summary": "Delete a record; later indices shift down by one",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "index", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/datasets/{handle}/summary": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard counters",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{handle}/calendar": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Deadline calendar for one month",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "month", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{handle}/alerts": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Records inside any of their alert thresholds",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{handle}/export/processed": {
            "post": {
                "tags": ["Exports"],
                "summary": "Write the processed workbook with live formulas",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/SaveProcessedRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Persistence error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{handle}/export/alerts": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download the alert list",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["xlsx", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "404": {"description": "No alert targets", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{handle}/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a background export",
                "parameters": [
                    {"name": "handle", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportJobRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "OpenDatasetRequest": {
            "type": "object",
            "properties": {
                "path": {"type": "string"}
            }
        },
        "RecordRequest": {
            "type": "object",
            "properties": {
                "staffCode": {"type": "string"},
                "name1": {"type": "string"},
                "name2": {"type": "string"},
                "permitStatus": {"type": "string"},
                "nationality": {"type": "string"},
                "cardNumber": {"type": "string"},
                "birthDate": {"type": "string"},
                "cohort": {"type": "string"},
                "permissionDate": {"type": "string"},
                "expirationDate": {"type": "string"},
                "priorElapsedDays": {"type": "string"},
                "skill1Limit": {"type": "string"},
                "thresholds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "SaveProcessedRequest": {
            "type": "object",
            "properties": {
                "path": {"type": "string"}
            }
        },
        "ExportJobRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["processed", "alerts"]},
                "format": {"type": "string", "enum": ["xlsx", "csv", "pdf"]}
            },
            "required": ["kind", "format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
