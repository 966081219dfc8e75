// Package metrics keeps in-process counters and duration histograms for
// executed work items. Metric names carry their labels inline, e.g.
// items_total{operation=generateText,outcome=success}. A nil *Collector
// records nothing.
package metrics
