package services

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/anonto42/minitwitter/backend/internal/services")
