package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	batchesProcessed atomic.Int64
	recordsReceived  atomic.Int64
	recordsSurvived  atomic.Int64
	recordsFailed    atomic.Int64
	alertsRaised     atomic.Int64
	linksWritten     atomic.Int64
)

func Init() {}

// ObserveBatch records the outcome of one pipeline batch.
func ObserveBatch(received, survived, failed int) {
	batchesProcessed.Add(1)
	recordsReceived.Add(int64(received))
	recordsSurvived.Add(int64(survived))
	recordsFailed.Add(int64(failed))
}

func ObserveAlert() {
	alertsRaised.Add(1)
}

func ObserveLink() {
	linksWritten.Add(1)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP abacus_pipeline_batches_total Number of raw-record batches processed.\n")
	fmt.Fprintf(w, "# TYPE abacus_pipeline_batches_total counter\n")
	fmt.Fprintf(w, "abacus_pipeline_batches_total %d\n", batchesProcessed.Load())

	fmt.Fprintf(w, "# HELP abacus_pipeline_records_received_total Number of raw records received from the intake stream.\n")
	fmt.Fprintf(w, "# TYPE abacus_pipeline_records_received_total counter\n")
	fmt.Fprintf(w, "abacus_pipeline_records_received_total %d\n", recordsReceived.Load())

	fmt.Fprintf(w, "# HELP abacus_pipeline_records_survived_total Number of records that completed every pipeline step.\n")
	fmt.Fprintf(w, "# TYPE abacus_pipeline_records_survived_total counter\n")
	fmt.Fprintf(w, "abacus_pipeline_records_survived_total %d\n", recordsSurvived.Load())

	fmt.Fprintf(w, "# HELP abacus_pipeline_records_failed_total Number of records removed by a failing pipeline step.\n")
	fmt.Fprintf(w, "# TYPE abacus_pipeline_records_failed_total counter\n")
	fmt.Fprintf(w, "abacus_pipeline_records_failed_total %d\n", recordsFailed.Load())

	fmt.Fprintf(w, "# HELP abacus_alerts_raised_total Number of alerts inserted.\n")
	fmt.Fprintf(w, "# TYPE abacus_alerts_raised_total counter\n")
	fmt.Fprintf(w, "abacus_alerts_raised_total %d\n", alertsRaised.Load())

	fmt.Fprintf(w, "# HELP abacus_links_written_total Number of links inserted or updated.\n")
	fmt.Fprintf(w, "# TYPE abacus_links_written_total counter\n")
	fmt.Fprintf(w, "abacus_links_written_total %d\n", linksWritten.Load())
}
