//
// Copyright 2026 Kapitor Technologies Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package observability

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/configuration"
)

func Make(cfg configuration.Log) *Observability {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Observability{
		log:      log,
		metrics:  prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
}

type Observability struct {
	log      *logrus.Logger
	metrics  *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func (o *Observability) Log() *logrus.Logger {
	return o.log
}

func (o *Observability) Metrics() *prometheus.Registry {
	return o.metrics
}

func (o *Observability) Counter(opts prometheus.CounterOpts) prometheus.Counter {
	c, ok := o.counters[opts.Name]
	if ok {
		return c
	}
	c = prometheus.NewCounter(opts)
	err := o.metrics.Register(c)
	if err != nil {
		o.log.WithField("metric_collector", opts.Name).
			Errorf("failed to register metric")
		return c
	}
	o.counters[opts.Name] = c
	return c
}

func (o *Observability) Gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g, ok := o.gauges[opts.Name]
	if ok {
		return g
	}
	g = prometheus.NewGauge(opts)
	err := o.metrics.Register(g)
	if err != nil {
		o.log.WithField("metric_collector", opts.Name).
			Errorf("failed to register metric")
		return g
	}
	o.gauges[opts.Name] = g
	return g
}

func MakeSettlementMetrics(obs *Observability, action string) *SettlementMetrics {
	counters := &SettlementMetrics{}
	v := reflect.ValueOf(counters).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := strings.ToLower(t.Field(i).Name)
		name := fmt.Sprintf("custody_%s_%s_total", field, action)
		help := fmt.Sprintf("Number of %s successfully %s.", field, action)
		opts := prometheus.CounterOpts{
			Name: name,
			Help: help,
		}
		collector := obs.Counter(opts)
		v.Field(i).Set(reflect.ValueOf(collector))
	}
	return counters
}

type SettlementMetrics struct {
	Events      prometheus.Counter
	Intents     prometheus.Counter
	Credits     prometheus.Counter
	Mints       prometheus.Counter
	Settlements prometheus.Counter
	Duplicates  prometheus.Counter
}

type TrackerMetrics struct {
	SweepDuration prometheus.Gauge
	Confirmed     prometheus.Counter
	Dropped       prometheus.Counter
}

func MakeTrackerMetrics(obs *Observability) *TrackerMetrics {
	return &TrackerMetrics{
		SweepDuration: obs.Gauge(prometheus.GaugeOpts{
			Name: "custody_sweep_duration_seconds",
			Help: "Seconds spent on the last confirmation sweep",
		}),
		Confirmed: obs.Counter(prometheus.CounterOpts{
			Name: "custody_deposits_confirmed_total",
			Help: "Number of deposits that reached the confirmation target.",
		}),
		Dropped: obs.Counter(prometheus.CounterOpts{
			Name: "custody_deposits_dropped_total",
			Help: "Number of deposits marked failed after repeated receipt misses.",
		}),
	}
}
