package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return reg
}

// GRPCServerOptions instruments unary and stream handlers.
func GRPCServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
	}
}

// RegisterGRPC exposes the server metrics of s on reg. Call it after all
// services are registered on s.
func RegisterGRPC(reg prometheus.Registerer, s *grpc.Server) {
	grpc_prometheus.EnableHandlingTimeHistogram()
	reg.MustRegister(grpc_prometheus.DefaultServerMetrics)
	grpc_prometheus.Register(s)
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))
}

// Storefront holds the cart metrics of the storefront service.
type Storefront struct {
	CartMutations *prometheus.CounterVec
	OpenStreams   prometheus.Gauge
}

func NewStorefront(reg prometheus.Registerer) *Storefront {
	m := &Storefront{
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cart_mutations_total",
			Help:      "Cart add and remove requests by operation and result.",
		}, []string{"op", "result"}),
		OpenStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "cart_streams_open",
			Help:      "Cart count streams currently served.",
		}),
	}

	reg.MustRegister(m.CartMutations, m.OpenStreams)

	return m
}

// ObserveMutation counts one cart mutation. A nil receiver is a no-op.
func (m *Storefront) ObserveMutation(op string, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CartMutations.WithLabelValues(op, result).Inc()
}

func (m *Storefront) StreamOpened() {
	if m != nil {
		m.OpenStreams.Inc()
	}
}

func (m *Storefront) StreamClosed() {
	if m != nil {
		m.OpenStreams.Dec()
	}
}
