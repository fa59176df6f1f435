// Package server orchestrates the driftsky backend components.
//
// # Overview
//
// The server package is the central coordinator of the driftsky backend.
// It owns the session store, the upstream AT Protocol clients, the static
// asset roots, and the page metadata resolver, and it exposes all of them
// through a single HTTP handler.
//
// # Request Dispatch
//
// Every request flows through the dispatcher built by Handler, in order:
//
//  1. CORS headers for allow-listed origins (credentialed, origin echoed)
//  2. OPTIONS preflights answered with 204
//  3. Exact method+path API routes
//  4. GET/HEAD: /emoji/ passthrough proxy, then the build root, then the
//     public root
//  5. GET/HEAD: the SPA shell with request-specific social metadata
//  6. Everything else: 404
//
// # HTTP API
//
//   - POST /chat/login - Exchange credentials for a session cookie
//   - POST /chat/resume - Rebuild a session from a refresh credential
//   - POST /chat/logout - Destroy the local session
//   - GET /chat/conversations - List conversations
//   - GET /chat/conversation - Fetch one conversation
//   - GET /chat/conversation/for-members - Get-or-create by member set
//   - GET /chat/conversation/availability - Check member availability
//   - GET /chat/messages - List messages, cursor-paginated
//   - POST /chat/message - Send a message
//   - POST /chat/message/delete - Delete a message for self
//   - POST /chat/read - Mark a conversation read
//   - POST /chat/leave - Leave a conversation
//   - GET|HEAD /emoji/{path} - Emoji passthrough proxy
//   - GET /health - Liveness check
//
// # Error Contract
//
// Error bodies are always {"error": string}. A missing or unknown session
// cookie yields 401 "Chat session not found."; a session the upstream
// rejects yields 401 "Chat session expired." and destroys the local
// record. Upstream rate limits surface as 429. Anything unexpected is a
// generic 500; causes stay in the logs.
//
// # Key Files
//
//   - server.go: Server struct, initialization, Run/Shutdown
//   - router.go: dispatch order, CORS, SPA shell rendering
//   - chat.go: session lifecycle and messaging proxy handlers
//   - emoji.go: emoji passthrough proxy
//   - respond.go: response helpers and upstream error mapping
package server
