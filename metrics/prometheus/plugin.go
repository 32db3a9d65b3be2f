// Package prometheus registers the Prometheus metric reporter as a logsink
// plugin so it can be enabled purely from configuration.
package prometheus

import (
	"fmt"

	"github.com/linchenxuan/logsink/metrics"
	"github.com/linchenxuan/logsink/plugin"
)

type factory struct{}

// Factory returns the plugin factory for the Prometheus reporter.
func Factory() plugin.Factory {
	return &factory{}
}

// Type returns the plugin type.
func (f *factory) Type() plugin.Type {
	return plugin.Metrics
}

// Name returns the name of the plugin implementation.
func (f *factory) Name() string {
	return "prometheus"
}

// ConfigType returns an empty struct that represents the plugin's configuration.
// This struct will be populated by the manager using mapstructure.
func (f *factory) ConfigType() any {
	return &metrics.PrometheusReporterConfig{}
}

// Setup initializes a reporter instance based on the configuration and
// registers it with the metrics registry.
func (f *factory) Setup(cfgAny any) (plugin.Plugin, error) {
	cfg, ok := cfgAny.(*metrics.PrometheusReporterConfig)
	if !ok {
		return nil, fmt.Errorf("prometheus setup: unexpected config type %T", cfgAny)
	}

	p, err := metrics.NewPrometheusReporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("prometheus setup: %w", err)
	}

	metrics.SetMetricsReporters([]metrics.Reporter{p})
	return &reporterPlugin{reporter: p}, nil
}

// Destroy stops the reporter and detaches it from the metrics registry.
func (f *factory) Destroy(p plugin.Plugin) {
	rp, ok := p.(*reporterPlugin)
	if !ok {
		return
	}
	metrics.SetMetricsReporters(nil)
	rp.reporter.Stop()
}

// reporterPlugin wraps the running reporter as a plugin instance.
type reporterPlugin struct {
	reporter *metrics.PrometheusReporter
}

// FactoryName identifies the factory that produced this instance.
func (r *reporterPlugin) FactoryName() string {
	return "prometheus"
}
