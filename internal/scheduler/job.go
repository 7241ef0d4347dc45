package scheduler

import (
	"context"
	"time"

	"pulse/internal/domain/ingest"
	"pulse/internal/domain/report"
)

// Job is a unit of work the worker pool can run.
type Job interface {
	// Execute runs the job. The context carries the pool's timeout and
	// cancellation.
	Execute(ctx context.Context) error

	// Name identifies the job in logs and telemetry.
	Name() string
}

// SyncJob runs the full ingest pipeline.
type SyncJob struct {
	pipeline     *ingest.Pipeline
	lookbackDays int
}

func NewSyncJob(pipeline *ingest.Pipeline, lookbackDays int) *SyncJob {
	return &SyncJob{pipeline: pipeline, lookbackDays: lookbackDays}
}

func (j *SyncJob) Execute(ctx context.Context) error {
	_, err := j.pipeline.Run(ctx, j.lookbackDays)
	return err
}

func (j *SyncJob) Name() string { return "source sync" }

// ReportJob computes and delivers the weekly report for the current week.
type ReportJob struct {
	service *report.Service
}

func NewReportJob(service *report.Service) *ReportJob {
	return &ReportJob{service: service}
}

func (j *ReportJob) Execute(ctx context.Context) error {
	_, err := j.service.Run(ctx, time.Time{})
	return err
}

func (j *ReportJob) Name() string { return "weekly report" }
