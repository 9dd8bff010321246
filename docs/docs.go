// Package docs registers the OpenAPI description of the HTTP API with swag.
// Keep it in line with the handler annotations in app/handlers.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/api/v1/health": {
            "get": {
                "tags": ["System"], "summary": "Health check", "security": [],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            }
        },
        "/api/v1/campaigns/uploads": {
            "post": {
                "tags": ["Campaigns"], "summary": "Upload Recipient List",
                "consumes": ["multipart/form-data"],
                "parameters": [{"type": "file", "name": "file", "in": "formData", "required": true, "description": "CSV or XLSX file with a header row"}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.UploadRecipientsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/campaigns": {
            "get": {
                "tags": ["Campaigns"], "summary": "List Campaigns",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "orderby", "in": "query", "enum": ["newest", "oldest"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            },
            "post": {
                "tags": ["Campaigns"], "summary": "Create Campaign",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreateCampaignRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "410": {"description": "Upload expired", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/campaigns/{uuid}": {
            "get": {
                "tags": ["Campaigns"], "summary": "Get Campaign",
                "parameters": [{"type": "string", "name": "uuid", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            },
            "put": {
                "tags": ["Campaigns"], "summary": "Update Campaign",
                "parameters": [
                    {"type": "string", "name": "uuid", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.UpdateCampaignRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Campaign is no longer a draft", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/campaigns/{uuid}/preview": {
            "post": {
                "tags": ["Campaigns"], "summary": "Preview Campaign",
                "parameters": [
                    {"type": "string", "name": "uuid", "in": "path", "required": true},
                    {"name": "request", "in": "body", "schema": {"$ref": "#/definitions/dto.PreviewCampaignRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/campaigns/{uuid}/send": {
            "post": {
                "tags": ["Campaigns"], "summary": "Start Sending",
                "parameters": [{"type": "string", "name": "uuid", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Campaign already sending or finished", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "503": {"description": "Dispatch queue unavailable", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/campaigns/{uuid}/recipients": {
            "get": {
                "tags": ["Campaigns"], "summary": "List Recipients",
                "parameters": [
                    {"type": "string", "name": "uuid", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "status", "in": "query", "enum": ["pending", "sent", "failed"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            }
        },
        "/api/v1/campaigns/{uuid}/recipients/export": {
            "get": {
                "tags": ["Campaigns"], "summary": "Export Recipients",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [{"type": "string", "name": "uuid", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Excel file", "schema": {"type": "string", "format": "binary"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/credits/balance": {
            "get": {
                "tags": ["Credits"], "summary": "Credit Balance",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CreditBalanceResponse"}}}
            }
        },
        "/t/open/{campaign_uuid}/{recipient_uuid}": {
            "get": {
                "tags": ["Tracking"], "summary": "Open Tracking Pixel", "security": [],
                "produces": ["image/gif"],
                "parameters": [
                    {"type": "string", "name": "campaign_uuid", "in": "path", "required": true},
                    {"type": "string", "name": "recipient_uuid", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "1x1 transparent GIF"}}
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorDetail"}
            }
        },
        "dto.ErrorDetail": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "details": {}}
        },
        "dto.UploadRecipientsResponse": {
            "type": "object",
            "properties": {
                "upload_token": {"type": "string"},
                "file_name": {"type": "string"},
                "columns": {"type": "array", "items": {"type": "string"}},
                "canonical_keys": {"type": "array", "items": {"type": "string"}},
                "suggested_mapping": {"type": "object", "additionalProperties": {"type": "string"}},
                "sample_rows": {"type": "array", "items": {"type": "object"}},
                "row_count": {"type": "integer"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "dto.CreateCampaignRequest": {
            "type": "object",
            "required": ["upload_token", "mapping", "name", "subject_template", "body_template", "send_rate"],
            "properties": {
                "upload_token": {"type": "string", "format": "uuid"},
                "mapping": {"type": "object", "additionalProperties": {"type": "string"}},
                "name": {"type": "string", "maxLength": 255},
                "subject_template": {"type": "string"},
                "body_template": {"type": "string"},
                "attachment_template": {"type": "string"},
                "attachment_name": {"type": "string"},
                "send_rate": {"type": "integer", "minimum": 1, "maximum": 600},
                "schedule_mode": {"type": "string", "enum": ["immediate", "fixed-time", "per-recipient-date"]},
                "scheduled_at": {"type": "string", "format": "date-time"},
                "date_column": {"type": "string"},
                "default_send_time": {"type": "string", "example": "09:00"}
            }
        },
        "dto.UpdateCampaignRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "subject_template": {"type": "string"},
                "body_template": {"type": "string"},
                "attachment_template": {"type": "string"},
                "attachment_name": {"type": "string"},
                "send_rate": {"type": "integer", "minimum": 1, "maximum": 600},
                "schedule_mode": {"type": "string", "enum": ["immediate", "fixed-time", "per-recipient-date"]},
                "scheduled_at": {"type": "string", "format": "date-time"},
                "date_column": {"type": "string"},
                "default_send_time": {"type": "string"}
            }
        },
        "dto.PreviewCampaignRequest": {
            "type": "object",
            "properties": {"recipient_uuid": {"type": "string", "format": "uuid"}}
        },
        "dto.CreditBalanceResponse": {
            "type": "object",
            "properties": {
                "customer_id": {"type": "integer"},
                "balance": {"type": "integer"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "WFAHub Campaign API",
	Description:      "Bulk email campaigns: recipient import, mail merge, rate-limited dispatch and open tracking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
