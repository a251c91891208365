package config

// RAGConfig holds the R2R retrieval backend's connection and throttling
// settings, read straight off environment variables the same way
// AdsPowerConfig is — grounded on original_source's api_analyzer_agent.py
// constructing R2RClient(base_url) from an env-supplied URL.
type RAGConfig struct {
	// BaseURL is the R2R deployment root. Empty means no RAG backend is
	// configured, and callers should fall back to rag.NewStubClient.
	BaseURL string

	// RatePerSecond caps outbound retrieval queries/sec, enforced by
	// golang.org/x/time/rate in pkg/rag.HTTPClient.
	RatePerSecond float64
	Burst         int
}

// LoadRAGConfig reads RAG_BASE_URL, RAG_RATE_LIMIT_PER_SECOND, and
// RAG_RATE_LIMIT_BURST, defaulting to a conservative 2 queries/sec with a
// burst of 2.
func LoadRAGConfig() RAGConfig {
	return RAGConfig{
		BaseURL:       getenvDefault("RAG_BASE_URL", ""),
		RatePerSecond: getenvFloat("RAG_RATE_LIMIT_PER_SECOND", 2),
		Burst:         getenvInt("RAG_RATE_LIMIT_BURST", 2),
	}
}
