// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for ArgusLM components.

# Overview

The logger outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (server, benchmark, monitoring, etc.)
  - Instance ID (for correlating replicas)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("monitoring")

Log messages with structured fields:

	log.Info("Uptime check completed", map[string]interface{}{
	    "model_id": "gpt-4o",
	    "status":   "up",
	})

Log errors with the error attached:

	log.ErrorWithErr("Failed to persist checks", err, map[string]interface{}{
	    "batch_size": len(checks),
	})

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("Benchmark run completed",
	    float64(time.Since(start).Milliseconds()), nil)

# Output Format

Log entries are output as single-line JSON:

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"monitoring","instance_id":"i-abc123",
	 "message":"Uptime check completed","fields":{"model_id":"gpt-4o"}}

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected fallback)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.

Credentials must never be passed in messages or fields; log key names,
not values.
*/
package logger
