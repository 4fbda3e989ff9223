package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 检索服务Prometheus指标
var (
	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rag_documents_ingested_total",
		Help: "Total number of documents successfully ingested",
	})

	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rag_chunks_indexed_total",
		Help: "Total number of chunks added to the vector store",
	})

	QueriesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_queries_total",
		Help: "Total number of queries served",
	}, []string{"outcome"}) // outcome: answered, refused, error

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_provider_errors_total",
		Help: "Total number of embedding/generation provider failures",
	}, []string{"provider"}) // provider: embedding, generation

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rag_search_duration_seconds",
		Help:    "Duration of vector store similarity searches",
		Buckets: prometheus.DefBuckets,
	})
)
