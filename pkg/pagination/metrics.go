package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch results.
const (
	resultOK         = "ok"
	resultTransport  = "transport"
	resultValidation = "validation"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chidata_fetches_total",
		Help: "Paginated fetches by resource and outcome",
	}, []string{"resource", "result"})

	fetchPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chidata_fetch_pages_total",
		Help: "Pages requested by paginated fetches",
	}, []string{"resource"})

	fetchRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chidata_fetch_records_total",
		Help: "Records returned by successful fetches",
	}, []string{"resource"})
)
