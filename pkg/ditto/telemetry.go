package ditto

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/aleka07/twinsync/pkg/ditto")

// remoteRequests counts every call against the twin service by operation and
// result class (ok, created, already-exists, not_found, unauthorized, forbidden,
// transport, status).
var remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "twinsync",
	Name:      "remote_requests_total",
	Help:      "Requests sent to the twin service, by operation and result.",
}, []string{"op", "result"})
