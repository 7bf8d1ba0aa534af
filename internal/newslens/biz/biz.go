// Package biz implements the news retrieval and analysis core: ingestion
// and deduplication, vector indexing, semantic search, the summary cache,
// multi-perspective analysis and trending aggregation.
package biz

import (
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/kart-io/newslens/internal/newslens/biz")
