package export

import (
	"encoding/json"
)

type JSONExporter struct{}

func (e *JSONExporter) Export(rows []Row) ([]byte, string, string, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, "", "", err
	}
	return data, "application/json", "json", nil
}
