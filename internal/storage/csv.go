// Package storage persists flow records for offline analysis and model
// training.
package storage

import (
	"fmt"
	"os"
	"sync"

	"SentiNet/internal/model"
)

const csvHeader = "timestamp,switch_id,src_mac,dst_mac,packet_count,byte_count,pps,bps,avg_pkt_size\n"

// CSVWriter appends flow records to a training-data CSV file.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter creates a writer targeting the given file. The header row
// is written on first use if the file does not exist yet.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write appends the records.
func (w *CSVWriter) Write(records []model.FlowRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, statErr := os.Stat(w.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	if fresh {
		if _, err := f.WriteString(csvHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	for _, r := range records {
		line := fmt.Sprintf("%d,%s,%s,%s,%d,%d,%.2f,%.2f,%.2f\n",
			r.Timestamp.Unix(), r.SwitchID, r.SrcMAC, r.DstMAC,
			r.PacketCount, r.ByteCount, r.PPS, r.BPS, r.AvgPktSize)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("failed to append record: %w", err)
		}
	}
	return nil
}
