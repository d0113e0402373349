package sim

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultProcessID is used for accesses that carry only a page number.
const DefaultProcessID = "P1"

// Page identifies a virtual page within a process. Equality is structural.
type Page struct {
	ProcessID string `json:"processId" yaml:"process_id"`
	Number    int    `json:"pageNumber" yaml:"page_number"`
}

// NewPage builds a Page, defaulting an empty process ID to DefaultProcessID.
func NewPage(processID string, number int) Page {
	if processID == "" {
		processID = DefaultProcessID
	}
	return Page{ProcessID: processID, Number: number}
}

// Key returns the collapsed "{processId}-{pageNumber}" form.
func (p Page) Key() string {
	return p.ProcessID + "-" + strconv.Itoa(p.Number)
}

func (p Page) String() string { return p.Key() }

// ParsePageKey is the inverse of Page.Key. The page number is taken after the
// last '-', so process IDs may themselves contain dashes. A doubled dash
// before the digits marks a negative page number ("P1--3").
func ParsePageKey(key string) (Page, error) {
	idx := strings.LastIndex(key, "-")
	if idx <= 0 || idx == len(key)-1 {
		return Page{}, fmt.Errorf("malformed page key %q", key)
	}
	if idx > 1 && key[idx-1] == '-' {
		idx--
	}
	if idx <= 0 {
		return Page{}, fmt.Errorf("malformed page key %q", key)
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return Page{}, fmt.Errorf("malformed page key %q: %w", key, err)
	}
	return Page{ProcessID: key[:idx], Number: n}, nil
}

// UnmarshalJSON accepts either a bare page number or an object with
// processId/pageNumber fields.
func (p *Page) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("page must not be null")
	}
	if trimmed[0] != '{' {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("page must be an integer or an object: %w", err)
		}
		*p = NewPage("", n)
		return nil
	}
	var raw struct {
		ProcessID string `json:"processId"`
		Number    *int   `json:"pageNumber"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n := 0
	if raw.Number != nil {
		n = *raw.Number
	}
	*p = NewPage(raw.ProcessID, n)
	return nil
}

// PageKeys maps pages to their collapsed keys.
func PageKeys(pages []Page) []string {
	keys := make([]string, len(pages))
	for i, p := range pages {
		keys[i] = p.Key()
	}
	return keys
}

// CopySequences deep-copies a list of access sequences.
func CopySequences(seqs [][]Page) [][]Page {
	out := make([][]Page, len(seqs))
	for i, s := range seqs {
		out[i] = append([]Page(nil), s...)
	}
	return out
}
