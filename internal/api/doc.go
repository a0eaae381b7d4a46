// Package api implements the JSON HTTP surface of the hosting runtime.
//
// Endpoints:
//
//	GET  /health                        liveness probe
//	GET  /ready                         readiness probe (pings the retrieval server)
//	GET  /api/v1/agents                 registered agents
//	POST /api/v1/chat                   synchronous chat turn
//	POST /api/v1/chat/stream            streaming chat turn (Server-Sent Events)
//	GET  /api/v1/sessions               list sessions
//	POST /api/v1/sessions               create session
//	GET  /api/v1/sessions/{id}          session details
//	GET  /api/v1/sessions/{id}/messages session transcript
//	DELETE /api/v1/sessions/{id}        delete session
//	GET  /api/v1/search                 cross-session message search
//	POST /api/v1/documents              ingest text into the knowledge base
//	GET  /api/v1/stats                  usage counters
//
// Health probes bypass the middleware stack so orchestrators are never
// rate limited or CORS-blocked. Everything else passes through
// recovery, request ID, logging, CORS and per-IP rate limiting.
package api
