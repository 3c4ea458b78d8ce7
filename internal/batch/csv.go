package batch

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// requiredColumns must appear in the header. The optional ones are id, unit,
// zip, income and household_size.
var requiredColumns = []string{"street", "city", "state"}

// ReadRequests parses CSV input with a header row. Header names are matched
// case-insensitively and unknown columns are ignored. Rows without an id
// get a generated one.
func ReadRequests(r io.Reader) ([]Request, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, eris.New("batch: input is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "batch: read header")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, eris.Errorf("batch: input is missing column %q", c)
		}
	}

	var reqs []Request
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read line %d", line)
		}
		if blank(rec) {
			continue
		}
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		req := Request{
			ID:            get("id"),
			Street:        get("street"),
			Unit:          get("unit"),
			City:          get("city"),
			State:         get("state"),
			Zip:           get("zip"),
			Income:        get("income"),
			HouseholdSize: get("household_size"),
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
