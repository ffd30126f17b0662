package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option defines some options to the metrics initialization
type Option func(*settings)

type settings struct {
	namespace   string
	constLabels prometheus.Labels
}

// WithNamespace prefixes every metric name. The default is "monorel".
func WithNamespace(namespace string) Option {
	return func(s *settings) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithConstLabels adds labels to every metric, e.g. the repository or the CI runner
func WithConstLabels(labels map[string]string) Option {
	return func(s *settings) {
		for k, v := range labels {
			s.constLabels[k] = v
		}
	}
}
