// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contextsvc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathwise_context_cache_hits_total",
		Help: "Context cache lookups served from the volatile tier",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathwise_context_cache_misses_total",
		Help: "Context cache lookups that fell through to the durable store",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathwise_context_cache_evictions_total",
		Help: "Context cache entries evicted by LRU pressure",
	})

	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathwise_context_store_operations_total",
		Help: "Durable context store operations by type and status",
	}, []string{"operation", "status"})
)
