package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>auth-kit — Swagger</title>
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
  "info": { "title": "auth-kit", "version": "v0.1.0" },
  "paths": {
    "/auth/register": {
      "post": { "summary": "Create an account with email and password", "responses": { "201": { "description": "user and session token" }, "409": { "description": "email already registered" } } }
    },
    "/auth/login": {
      "post": { "summary": "Password login", "responses": { "200": { "description": "user and session token" }, "401": { "description": "invalid credentials" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Destroy the current session", "responses": { "200": { "description": "logged out" } } }
    },
    "/auth/logout-all": {
      "post": { "summary": "Destroy every session of the caller", "responses": { "200": { "description": "sessions revoked" } } }
    },
    "/auth/oauth/login": {
      "get": { "summary": "Redirect to the OAuth provider", "responses": { "302": { "description": "redirect with signed state" } } }
    },
    "/auth/oauth/callback": {
      "get": { "summary": "Finish the OAuth handshake", "responses": { "200": { "description": "user and session token" }, "401": { "description": "invalid state or code" } } }
    },
    "/sessions": {
      "get": { "summary": "List the caller's sessions", "responses": { "200": { "description": "sessions, current flagged" } } }
    },
    "/sessions/{sessionId}": {
      "delete": { "summary": "Revoke one of the caller's sessions", "responses": { "200": { "description": "revoked" }, "403": { "description": "not the owner" }, "404": { "description": "unknown session" } } }
    },
    "/passkeys": {
      "post": { "summary": "Enroll a verified passkey credential", "responses": { "201": { "description": "stored" }, "409": { "description": "credential id already bound" } } },
      "get": { "summary": "List the caller's passkeys", "responses": { "200": { "description": "credentials" } } }
    },
    "/passkeys/{passkeyId}": {
      "delete": { "summary": "Remove one of the caller's passkeys", "responses": { "200": { "description": "removed" }, "403": { "description": "not the owner" } } }
    },
    "/users/me": {
      "get": { "summary": "Current profile", "responses": { "200": { "description": "public projection" } } },
      "patch": { "summary": "Update profile fields", "responses": { "200": { "description": "updated projection" } } }
    },
    "/roles/users": {
      "get": { "summary": "List all users (admin)", "responses": { "200": { "description": "public projections" }, "403": { "description": "not an admin" } } }
    },
    "/roles/users/{userId}": {
      "patch": { "summary": "Set a user's role (admin)", "responses": { "200": { "description": "updated projection" }, "400": { "description": "unknown role" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
