package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "StudyPlan API",
        "description": "Syllabus topic extraction and study plan scheduling service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Courses", "description": "Course management"},
        {"name": "Topics", "description": "Topic management"},
        {"name": "Extraction", "description": "Syllabus topic extraction"},
        {"name": "Plans", "description": "Study plan generation and retrieval"},
        {"name": "Preferences", "description": "Schedule preferences"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List the caller's courses",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["active", "archived"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Register a course with its exam date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get one of the caller's courses",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Course not found"}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Archive a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses/{id}/topics": {
            "get": {
                "tags": ["Topics"],
                "summary": "List topics of a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/extract-topics": {
            "post": {
                "tags": ["Extraction"],
                "summary": "Extract topics from syllabus text",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExtractTopicsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Extraction finished", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Another extraction is already running"},
                    "403": {"description": "Topic quota exhausted"},
                    "429": {"description": "Model gateway rate limited"}
                }
            }
        },
        "/topics/{id}": {
            "patch": {
                "tags": ["Topics"],
                "summary": "Update a topic's owner-mutable fields",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTopicRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/preferences": {
            "get": {
                "tags": ["Preferences"],
                "summary": "Get the caller's schedule preferences",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Preferences"],
                "summary": "Set the caller's schedule preferences",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertPreferencesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/generate": {
            "post": {
                "tags": ["Plans"],
                "summary": "Generate a new study plan version",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/GeneratePlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "Plan persisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Workload does not fit the available days", "schema": {"$ref": "#/definitions/InfeasiblePayload"}},
                    "429": {"description": "Model gateway rate limited"}
                }
            }
        },
        "/plans/current": {
            "get": {
                "tags": ["Plans"],
                "summary": "Get the caller's current study plan",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No plan generated yet"}
                }
            }
        },
        "/plans/current/export": {
            "get": {
                "tags": ["Plans"],
                "summary": "Download the current study plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "404": {"description": "No plan generated yet"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateCourseRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "examDate": {"type": "string", "format": "date"}
            },
            "required": ["title"]
        },
        "ExtractTopicsRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "fileId": {"type": "string"},
                "mode": {"type": "string", "enum": ["replace", "append"]}
            },
            "required": ["text"]
        },
        "UpdateTopicRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "notes": {"type": "string"},
                "status": {"type": "string", "enum": ["not_started", "in_progress", "done"]},
                "difficultyWeight": {"type": "integer"},
                "examImportance": {"type": "integer"}
            }
        },
        "UpsertPreferencesRequest": {
            "type": "object",
            "properties": {
                "dailyHours": {"type": "number"},
                "weeklyOffDays": {"type": "array", "items": {"type": "string"}},
                "blackoutDates": {"type": "array", "items": {"type": "string", "format": "date"}}
            }
        },
        "GeneratePlanRequest": {
            "type": "object",
            "properties": {
                "reschedule": {"type": "boolean"},
                "includeMissedItems": {"type": "boolean"}
            }
        },
        "InfeasiblePayload": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "shortfall_hours": {"type": "number"},
                "courses": {"type": "array", "items": {"type": "object"}},
                "suggestions": {"type": "array", "items": {"type": "string"}}
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
