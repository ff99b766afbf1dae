package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EMIS Scheduler API",
        "description": "Academic resource scheduling: teacher distribution, slot lifecycle and absence substitution",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Schedule", "description": "Plan previews, commits, slots and the time grid"},
        {"name": "Absences", "description": "Teacher absences and substitute assignments"}
    ],
    "paths": {
        "/schedule/preview": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Build an uncommitted assignment plan preview",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BuildPreviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/commit": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Commit a previewed plan as schedule slots",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommitPlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Plan stale or conflicting", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/slots": {
            "get": {
                "tags": ["Schedule"],
                "summary": "List committed schedule slots",
                "parameters": [
                    {"name": "institutionId", "in": "query", "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/slots/{id}": {
            "patch": {
                "tags": ["Schedule"],
                "summary": "Apply a lifecycle transition to a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SlotMutationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/settings": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Get distribution settings",
                "parameters": [
                    {"name": "institutionId", "in": "query", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Schedule"],
                "summary": "Replace distribution settings",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DistributionSettings"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/grid": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Resolve the time grid",
                "parameters": [
                    {"name": "institutionId", "in": "query", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/absences": {
            "get": {
                "tags": ["Absences"],
                "summary": "List teacher absences",
                "parameters": [
                    {"name": "institutionId", "in": "query", "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/absences/{id}/resolve": {
            "post": {
                "tags": ["Absences"],
                "summary": "Resolve an absence with substitute assignments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveAbsenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/absences/{id}/substitutions": {
            "get": {
                "tags": ["Absences"],
                "summary": "List substitute assignments for an absence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "BuildPreviewRequest": {
            "type": "object",
            "required": ["institutionId", "termId", "strategy", "selectedClasses"],
            "properties": {
                "institutionId": {"type": "string"},
                "termId": {"type": "string"},
                "strategy": {"type": "string", "enum": ["automatic", "manual", "hybrid"]},
                "selectedClasses": {"type": "array", "items": {"type": "string"}},
                "settings": {"$ref": "#/definitions/DistributionSettings"}
            }
        },
        "CommitPlanRequest": {
            "type": "object",
            "required": ["planId"],
            "properties": {
                "planId": {"type": "string"},
                "expectedScheduleVersion": {"type": "integer"}
            }
        },
        "SlotMutationRequest": {
            "type": "object",
            "required": ["operation"],
            "properties": {
                "operation": {"type": "string", "enum": ["edit", "cancel", "move"]},
                "teacherId": {"type": "string"},
                "subjectId": {"type": "string"},
                "room": {"type": "string"},
                "slotType": {"type": "string", "enum": ["regular", "exam", "break", "special"]},
                "dayOfWeek": {"type": "integer"},
                "period": {"type": "integer"},
                "force": {"type": "boolean"}
            }
        },
        "ResolveAbsenceRequest": {
            "type": "object",
            "required": ["mode"],
            "properties": {
                "mode": {"type": "string", "enum": ["auto", "manual"]},
                "slotId": {"type": "string"},
                "date": {"type": "string", "format": "date-time"},
                "teacherId": {"type": "string"}
            }
        },
        "DistributionSettings": {
            "type": "object",
            "properties": {
                "institution_id": {"type": "string"},
                "term_id": {"type": "string"},
                "prioritize_specialization": {"type": "boolean"},
                "balance_workload": {"type": "boolean"},
                "respect_preferences": {"type": "boolean"},
                "avoid_conflicts": {"type": "boolean"},
                "max_classes_per_teacher": {"type": "integer"},
                "max_subjects_per_teacher": {"type": "integer"},
                "min_utilization_pct": {"type": "integer"},
                "max_utilization_pct": {"type": "integer"},
                "rules": {"type": "array", "items": {"type": "object"}}
            }
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
