// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the ArgusLM server.
//
// ArgusLM is an LLM fleet observability service that:
// - Measures streaming latency (TTFT) and throughput (TPS) per model
// - Runs throttled benchmark campaigns with live WebSocket progress
// - Probes monitored models on a schedule and records uptime history
// - Evaluates alert rules against fresh health checks
// - Manages provider accounts with encrypted credential storage
//
// Usage:
//
//	./server
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - PostgreSQL connection string
//	ARGUSLM_CONFIG - path to an optional YAML config file
//	ARGUSLM_ENCRYPTION_KEY - base64 AES key for the credential vault
//	ARGUSLM_ENCRYPTION_KEY_SECRET_ID - AWS Secrets Manager secret holding the key
//	ARGUSLM_SECRET_KEY - API secret key
//	CORS_ORIGINS - comma-separated allowed origins
//	REDIS_URL - optional Redis URL for cross-instance progress fan-out
//	ARCHIVE_BACKEND - optional export archival backend (s3|gcs|azure|fs)
package main

import (
	"arguslm/platform/server"
)

func main() {
	server.Run()
}
