package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	filesProcessed      atomic.Int64
	filesFailed         atomic.Int64
	rowsRead            atomic.Int64
	personsWritten      atomic.Int64
	conditionsWritten   atomic.Int64
	observationsWritten atomic.Int64
	residualPHIFiles    atomic.Int64
	destinationFailures atomic.Int64
)

// Counts is a point-in-time copy of the curation counters.
type Counts struct {
	FilesProcessed      int64
	FilesFailed         int64
	RowsRead            int64
	PersonsWritten      int64
	ConditionsWritten   int64
	ObservationsWritten int64
	ResidualPHIFiles    int64
	DestinationFailures int64
}

func ObserveFile(rows, persons, conditions, observations int) {
	filesProcessed.Add(1)
	rowsRead.Add(int64(rows))
	personsWritten.Add(int64(persons))
	conditionsWritten.Add(int64(conditions))
	observationsWritten.Add(int64(observations))
}

func ObserveFailure() {
	filesFailed.Add(1)
}

func ObserveResidualPHI() {
	residualPHIFiles.Add(1)
}

func ObserveDestinationFailures(n int) {
	destinationFailures.Add(int64(n))
}

func Snapshot() Counts {
	return Counts{
		FilesProcessed:      filesProcessed.Load(),
		FilesFailed:         filesFailed.Load(),
		RowsRead:            rowsRead.Load(),
		PersonsWritten:      personsWritten.Load(),
		ConditionsWritten:   conditionsWritten.Load(),
		ObservationsWritten: observationsWritten.Load(),
		ResidualPHIFiles:    residualPHIFiles.Load(),
		DestinationFailures: destinationFailures.Load(),
	}
}

func WritePrometheus(w http.ResponseWriter) {
	c := Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	counter(w, "curator_files_processed_total", "Input files curated successfully.", c.FilesProcessed)
	counter(w, "curator_files_failed_total", "Input files that failed to curate.", c.FilesFailed)
	counter(w, "curator_rows_read_total", "Input rows read from curated files.", c.RowsRead)
	counter(w, "curator_person_records_total", "Person records written.", c.PersonsWritten)
	counter(w, "curator_condition_records_total", "Condition records written.", c.ConditionsWritten)
	counter(w, "curator_observation_records_total", "Observation records written.", c.ObservationsWritten)
	counter(w, "curator_residual_phi_files_total", "Files with residual identifiers after de-identification.", c.ResidualPHIFiles)
	counter(w, "curator_destination_failures_total", "Output destinations that rejected a write.", c.DestinationFailures)
}

func counter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
