package main

import "github.com/prometheus/client_golang/prometheus"

var (
	metricSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dmpilot_sent_total",
		Help: "Total messages delivered and verified.",
	})
	metricFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dmpilot_failed_total",
		Help: "Total delivery attempts that ended in a non-success outcome.",
	})
	metricSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dmpilot_skipped_total",
		Help: "Total candidates skipped by history or session dedupe.",
	})
	metricCampaigns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dmpilot_campaigns_total",
		Help: "Total bulk campaigns started.",
	})
	metricProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dmpilot_campaign_progress",
		Help: "Messages sent in the currently running campaign.",
	})
)

func registerMetrics() {
	prometheus.MustRegister(
		metricSent, metricFailed, metricSkipped,
		metricCampaigns, metricProgress,
	)
}
