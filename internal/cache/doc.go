// Package cache provides an optional second-tier cache for the query
// pipeline: ResponseCache stores complete (question -> Response) pairs in
// Redis so a repeated question never re-runs retrieval, fusion, and
// synthesis at all, even when every individual LLM call inside it would
// have hit internal/llmgateway's own cache anyway.
//
// # Two cache layers
//
//  1. internal/llmgateway.Gateway's SQLite cache: per-call, content
//     addressed on (model, request). Survives process restarts, shared by
//     every caller of that Gateway.
//  2. This package's ResponseCache: per-question, Redis-backed, shared
//     across process replicas. Misses fall through to the full pipeline,
//     which itself benefits from layer 1's caching on retry.
//
// ResponseCache is optional: if Redis is unreachable at construction, it
// silently disables itself rather than failing startup.
package cache
