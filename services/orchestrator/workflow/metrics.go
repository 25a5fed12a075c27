// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathwise_workflow_runs_total",
		Help: "Pipeline run segments by kind (start/resume) and outcome",
	}, []string{"kind", "outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathwise_workflow_stage_duration_seconds",
		Help:    "Wall time per stage function",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathwise_workflow_stage_failures_total",
		Help: "Stage executions converted to the error path",
	}, []string{"stage"})

	checkpointOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathwise_workflow_checkpoint_operations_total",
		Help: "Checkpoint store operations by type and status",
	}, []string{"operation", "status"})
)
