package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
)

// Export formats supported by the audit-log endpoint.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// csvHeader fixes the exported column set and order.
var csvHeader = []string{"timestamp", "type", "signature", "namespace", "address", "reason", "actor", "amount"}

// Export renders records in the requested format. JSON wraps the records in
// an entries envelope; CSV emits the fixed header then one row per record,
// absent fields as empty strings. Fields containing a comma, quote, or
// newline are RFC-4180 quoted, so free-text reasons cannot corrupt rows.
func Export(records []Record, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return exportJSON(records)
	case FormatCSV:
		return exportCSV(records)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func exportJSON(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(map[string][]Record{"entries": records})
}

func exportCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{r.Timestamp, string(r.Type), r.Signature, r.Namespace, r.Address, r.Reason, r.Actor, r.Amount}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
