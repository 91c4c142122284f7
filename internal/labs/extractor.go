package labs

// Record is one structured entry produced from a matched OCR line.
type Record struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
	Unit      string `json:"unit"`
	Range     string `json:"range"`
	Status    Status `json:"status"`
}

// Extractor turns OCR text into records using a fixed reference table.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	table Table
}

// NewExtractor binds an extractor to table.
func NewExtractor(table Table) *Extractor {
	return &Extractor{table: table}
}

// Table returns the reference table the extractor classifies against.
func (e *Extractor) Table() Table { return e.table }

// ParseLine returns the record for one line, or ok == false when the line does
// not look like a lab result.
func (e *Extractor) ParseLine(line string) (Record, bool) {
	m, ok := MatchLine(line)
	if !ok {
		return Record{}, false
	}
	param, resolved := e.table.Resolve(m.Label)
	status, rng := Classify(param, resolved, m.Value)

	name := m.Label
	if resolved {
		name = param.Name
	}
	return Record{
		Parameter: name,
		Value:     m.Value,
		Unit:      m.Unit,
		Range:     rng,
		Status:    status,
	}, true
}

// Extract parses every line of text in order. It never fails; text without
// any recognizable line yields an empty slice.
func (e *Extractor) Extract(text string) []Record {
	records := make([]Record, 0)
	for _, line := range SplitLines(text) {
		if r, ok := e.ParseLine(line); ok {
			records = append(records, r)
		}
	}
	return records
}

// Summary counts records by status.
type Summary struct {
	Total          int `json:"total"`
	Normal         int `json:"normal"`
	NeedsAttention int `json:"needs_attention"`
	Unknown        int `json:"unknown"`
}

// Summarize tallies records by status.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusNormal:
			s.Normal++
		case StatusNeedsAttention:
			s.NeedsAttention++
		default:
			s.Unknown++
		}
	}
	return s
}
