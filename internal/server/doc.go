// Package server provides the HTTP monitoring API: health, live call
// listings, sanitized configuration, service statistics, and Prometheus
// metrics.
package server
