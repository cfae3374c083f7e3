package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_executions_started_total",
		Help: "Workflow executions started.",
	})
	ExecutionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_executions_finished_total",
		Help: "Workflow executions reaching a terminal state.",
	}, []string{"state"})
	StepsAutoExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_steps_auto_executed_total",
		Help: "Steps dispatched without human approval.",
	})
	StepsGated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_steps_gated_total",
		Help: "Steps suspended behind an approval request.",
	})
	ApprovalsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_approvals_pending",
		Help: "Approval requests currently awaiting a decision.",
	})
	ApprovalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_approval_decisions_total",
		Help: "Approval decisions by outcome.",
	}, []string{"outcome"})
	StepRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_step_retries_total",
		Help: "Step attempts scheduled for retry.",
	})
)
