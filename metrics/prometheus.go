// Prometheus reporting for logsink metrics. The reporter converts metric
// records to Prometheus collectors and exposes them via an HTTP endpoint or a
// push gateway.
package metrics

import (
	"context"
	"net"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/linchenxuan/logsink/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	_metricsChanSize = 65536
)

// metricType defines the type of Prometheus metric.
type metricType int

const (
	_metricTypeCounter metricType = iota
	_metricTypeGauge
)

// metricOpt contains options for creating Prometheus collectors.
type metricOpt struct {
	subsystem   string
	name        string
	constLabels map[string]string
}

// newMetricOpt creates metric options from a metric record and external labels.
func newMetricOpt(rc *Record, extLabels map[string]string) *metricOpt {
	opts := &metricOpt{
		subsystem:   strings.ReplaceAll(rc.Metrics().Group(), ".", "_"),
		name:        strings.ReplaceAll(rc.Metrics().Name(), ".", "_"),
		constLabels: make(map[string]string, len(rc.Dimensions())+len(extLabels)),
	}

	for k, v := range extLabels {
		opts.constLabels[k] = strings.ReplaceAll(v, ".", "_")
	}

	for k, v := range rc.Dimensions() {
		opts.constLabels[k] = strings.ReplaceAll(v, ".", "_")
	}
	return opts
}

// promGauge wraps a Prometheus gauge with value tracking for stopwatch averaging.
type promGauge struct {
	prometheus.Gauge
	value float64 // Accumulated value for averaging
	cnt   int     // Count of observations
}

// newPromGauge creates a new Prometheus gauge wrapper from a metric record.
func newPromGauge(rc *Record, extLabels map[string]string) *metricWrapper {
	o := newMetricOpt(rc, extLabels)
	opts := prometheus.GaugeOpts{
		Subsystem:   o.subsystem,
		Name:        o.name,
		ConstLabels: o.constLabels,
	}

	g := &promGauge{
		Gauge: promauto.NewGauge(opts),
	}
	g.merge(rc)

	return &metricWrapper{
		m:  g,
		mt: _metricTypeGauge,
	}
}

// merge updates the gauge value based on the metric policy.
func (p *promGauge) merge(rc *Record) {
	switch rc.Metrics().Policy() {
	case Policy_Set, Policy_Max:
		p.Set(float64(rc.Value()))
	case Policy_Stopwatch:
		v, c := rc.RawData()
		p.value += float64(v)
		p.cnt += c
		if p.cnt > 0 {
			p.Set(p.value / float64(p.cnt))
		}
	default:
		log.Error().Str("metric", rc.Metrics().Name()).Msg("prometheus gauge merge: policy invalid")
	}
}

// newPromCounter creates a new Prometheus counter from a metric record.
func newPromCounter(rc *Record, extLabels map[string]string) *metricWrapper {
	o := newMetricOpt(rc, extLabels)
	opts := prometheus.CounterOpts{
		Subsystem:   o.subsystem,
		Name:        o.name,
		ConstLabels: o.constLabels,
	}

	c := promauto.NewCounter(opts)
	c.Add(float64(rc.Value()))
	return &metricWrapper{
		m:  c,
		mt: _metricTypeCounter,
	}
}

// metricWrapper wraps Prometheus metrics since Counter and Gauge interfaces are similar.
// One wrapper structure stores the collector and its type.
type metricWrapper struct {
	m  prometheus.Metric
	mt metricType
}

// merge updates the wrapped metric with new record data.
func (m *metricWrapper) merge(rc *Record) {
	switch m.mt {
	case _metricTypeGauge:
		if g, ok := m.m.(*promGauge); ok && g != nil {
			g.merge(rc)
			return
		}
	case _metricTypeCounter:
		if c, ok := m.m.(prometheus.Counter); ok && c != nil {
			c.Add(float64(rc.Value()))
			return
		}
	}
	log.Error().Str("metric", rc.Metrics().Name()).
		Int("metrictype", int(m.mt)).Msg("prometheus merge failed")
}

// PrometheusReporterConfig contains configuration for the Prometheus reporter.
type PrometheusReporterConfig struct {
	Tag             string            `mapstructure:"tag"`             // Service tag
	PushAddr        string            `mapstructure:"pushAddr"`        // Push gateway address
	PushIntervalSec int               `mapstructure:"pushIntervalSec"` // Push interval in seconds
	PushJobName     string            `mapstructure:"pushJobName"`     // Push job name
	UsePush         bool              `mapstructure:"usePush"`         // Enable push mode
	MetricPath      string            `mapstructure:"metricPath"`      // Metrics HTTP path
	ExtLabels       map[string]string `mapstructure:"extLabels"`       // External labels
}

// PrometheusReporter implements a Prometheus metrics reporter that converts
// logsink metric records to Prometheus collectors and exposes them via HTTP
// or a push gateway.
type PrometheusReporter struct {
	cfg         *PrometheusReporterConfig
	promSvr     *http.Server
	pusher      *push.Pusher
	metricsChan chan Record
	metrics     map[string]*metricWrapper
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewPrometheusReporter creates a new Prometheus reporter instance with the
// given configuration. The aggregation goroutine and HTTP endpoint are
// started immediately.
func NewPrometheusReporter(cfg *PrometheusReporterConfig) (*PrometheusReporter, error) {
	if cfg == nil {
		cfg = &PrometheusReporterConfig{}
	}
	if cfg.MetricPath == "" {
		cfg.MetricPath = "/metrics"
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &PrometheusReporter{
		cfg:         cfg,
		metricsChan: make(chan Record, _metricsChanSize),
		metrics:     map[string]*metricWrapper{},
		ctx:         ctx,
		cancel:      cancel,
	}

	if err := p.start(); err != nil {
		cancel()
		return nil, err
	}
	return p, nil
}

// Report queues a metric record for aggregation. Non-blocking: records are
// discarded when the aggregation channel is full.
func (x *PrometheusReporter) Report(r Record) {
	select {
	case x.metricsChan <- r:
	default:
		log.Error().Msg("metrics chan full")
	}
}

func (x *PrometheusReporter) start() error {
	x.startAggregate()
	if x.cfg.UsePush {
		x.startPusher()
	}

	if _, err := x.startHTTPSvr(); err != nil {
		return err
	}
	return nil
}

// Stop terminates the aggregation goroutine, the pusher, and the HTTP server.
func (x *PrometheusReporter) Stop() {
	if x.cancel != nil {
		x.cancel()
		x.cancel = nil
	}

	if x.promSvr != nil {
		if err := x.promSvr.Close(); err != nil {
			log.Error().Err(err).Msg("stop prometheus http server")
		}
		x.promSvr = nil
	}
}

func (x *PrometheusReporter) startPusher() {
	x.pusher = push.New(x.cfg.PushAddr, x.cfg.PushJobName)
	x.pusher.Gatherer(prometheus.DefaultGatherer)
	go func() {
		log.Info().Msg("prometheus pusher started")
		t := time.NewTicker(time.Second * time.Duration(x.cfg.PushIntervalSec))
		defer t.Stop()
		for {
			select {
			case <-x.ctx.Done():
				log.Info().Msg("prometheus pusher end")
				return
			case <-t.C:
				newCtx, cancel := context.WithTimeout(x.ctx, time.Second*5)
				if err := x.pusher.PushContext(newCtx); err != nil {
					log.Error().Err(err).End()
				}
				cancel()
			}
		}
	}()
}

// startHTTPSvr starts the Prometheus HTTP server for exposing metrics.
// It creates a TCP listener on a random available port and serves the
// metrics endpoint. Returns the network address the server is listening on.
func (x *PrometheusReporter) startHTTPSvr() (net.Addr, error) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: nil, Port: 0}) //nolint:gosec
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(x.cfg.MetricPath, promhttp.Handler())

	x.promSvr = &http.Server{Handler: mux} //nolint:gosec
	go x.promSvr.Serve(l)
	log.Info().Str("url", path.Join(l.Addr().String(), x.cfg.MetricPath)).Msg("prometheus http listening")

	return l.Addr(), nil
}

// startAggregate starts the metrics aggregation goroutine.
// It continuously processes incoming metric records from the channel,
// merging them into the internal storage until the context is cancelled.
func (x *PrometheusReporter) startAggregate() {
	go func() {
		log.Info().Msg("prometheus collector begin")
		for {
			select {
			case rc := <-x.metricsChan:
				x.merge(&rc)
			case <-x.ctx.Done():
				log.Info().Msg("prometheus collector shutdown")
				return
			}
		}
	}()
}

// merge combines a metric record into the internal storage. It either
// updates an existing collector with the same key or creates a new one based
// on the metric policy.
func (x *PrometheusReporter) merge(rc *Record) {
	key := x.metricKey(rc)
	if w, ok := x.metrics[key]; ok {
		w.merge(rc)
		return
	}

	var w *metricWrapper
	switch rc.Metrics().Policy() {
	case Policy_Sum:
		w = newPromCounter(rc, x.cfg.ExtLabels)
	case Policy_Set, Policy_Max, Policy_Stopwatch:
		w = newPromGauge(rc, x.cfg.ExtLabels)
	default:
		log.Error().Str("metric", rc.Metrics().Name()).Msg("prometheus merge: policy invalid")
		return
	}
	x.metrics[key] = w
}

// metricKey builds the identity of a collector: group, name, and sorted
// dimension pairs. Records differing only in dimension values map to
// distinct collectors.
func (x *PrometheusReporter) metricKey(rc *Record) string {
	dims := rc.Dimensions()
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(rc.Metrics().Group())
	sb.WriteByte('/')
	sb.WriteString(rc.Metrics().Name())
	for _, k := range keys {
		sb.WriteByte('/')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(dims[k])
	}
	return sb.String()
}
