package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the OpenAPI description of the annotation API.
// - GET /swagger/index.html  -> Swagger UI loading the document below
// - GET /swagger/doc.json    -> OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})
	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>pdf-annotator - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "pdf-annotator", "version": "v0.1.0" },
  "paths": {
    "/api/sessions": {
      "post": { "summary": "Start an editing session", "responses": { "201": { "description": "session id and state" } } }
    },
    "/api/sessions/{id}": {
      "get": { "summary": "Session state", "responses": { "200": { "description": "snapshot" }, "404": { "description": "unknown session" } } },
      "delete": { "summary": "End the session and release its previews", "responses": { "204": { "description": "closed" } } }
    },
    "/api/sessions/{id}/upload": {
      "post": { "summary": "Upload a PDF (multipart field file)", "responses": { "200": { "description": "snapshot" }, "415": { "description": "not a PDF" }, "502": { "description": "document service failed" } } }
    },
    "/api/sessions/{id}/page": {
      "put": { "summary": "Navigate to a page", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"page":{"type":"integer"}}}}}}, "responses": { "200": { "description": "snapshot" } } }
    },
    "/api/sessions/{id}/geometry": {
      "put": { "summary": "Report the natural size of the current page", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"naturalWidth":{"type":"number"},"naturalHeight":{"type":"number"}}}}}}, "responses": { "200": { "description": "snapshot" } } }
    },
    "/api/sessions/{id}/placing": {
      "post": { "summary": "Arm text placement", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"text":{"type":"string"}}}}}}, "responses": { "200": { "description": "snapshot" } } },
      "delete": { "summary": "Cancel text placement", "responses": { "200": { "description": "snapshot" } } }
    },
    "/api/sessions/{id}/clicks": {
      "post": { "summary": "Place the pending text at a display-space click", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"x":{"type":"number"},"y":{"type":"number"},"originX":{"type":"number"},"originY":{"type":"number"}}}}}}, "responses": { "201": { "description": "edit and snapshot" }, "502": { "description": "edit kept, preview not refreshed" } } }
    },
    "/api/sessions/{id}/edits": {
      "get": { "summary": "List edits of a page", "parameters": [{ "name": "page", "in": "query", "schema": { "type": "integer" } }], "responses": { "200": { "description": "edits" } } }
    },
    "/api/sessions/{id}/edits/{edit}": {
      "delete": { "summary": "Remove an edit by id", "responses": { "200": { "description": "snapshot" }, "404": { "description": "unknown edit" } } }
    },
    "/api/sessions/{id}/pages/{page}/edits/{index}": {
      "delete": { "summary": "Remove the index-th edit listed for a page", "responses": { "200": { "description": "snapshot" } } }
    },
    "/api/sessions/{id}/metadata": {
      "put": { "summary": "Set title, author and subject", "responses": { "200": { "description": "snapshot" } } }
    },
    "/api/sessions/{id}/preview": {
      "get": { "summary": "Document currently displayed", "responses": { "200": { "description": "application/pdf" } } }
    },
    "/api/sessions/{id}/apply-edits": {
      "post": { "summary": "Download edited.pdf", "responses": { "200": { "description": "application/pdf" } } }
    },
    "/api/sessions/{id}/apply-metadata": {
      "post": { "summary": "Download edited-with-metadata.pdf", "responses": { "200": { "description": "application/pdf" } } }
    },
    "/api/sessions/{id}/export/{format}": {
      "get": { "summary": "Export as pdf, docx or images (zip)", "responses": { "200": { "description": "document.<ext>" } } }
    },
    "/api/resources/{ref}": {
      "get": { "summary": "Preview bytes by reference", "responses": { "200": { "description": "application/pdf" }, "404": { "description": "released or unknown" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
