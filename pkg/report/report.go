// Package report exports batch results
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/menta2k/image-quality/pkg/batch"
	"github.com/menta2k/image-quality/pkg/types"
)

// CSVHeader is the first line of every CSV export
const CSVHeader = "Filename,Score,Quality,Reasons"

// WriteCSV writes one row per completed item, in collection order.
// The reasons column is always quoted; the other columns are quoted only
// when they need to be.
func WriteCSV(w io.Writer, items []batch.ImageFile) error {
	if _, err := io.WriteString(w, CSVHeader+"\n"); err != nil {
		return err
	}

	for _, item := range items {
		if item.Status != batch.StatusCompleted || item.Result == nil {
			continue
		}
		r := item.Result
		line := fmt.Sprintf("%s,%d,%s,%s\n",
			field(item.Name),
			r.Score,
			field(string(r.Quality)),
			quote(strings.Join(r.Reasons, "; ")),
		)
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Entry is one completed item in a JSON export
type Entry struct {
	Filename   string            `json:"filename"`
	Path       string            `json:"path"`
	Hash       string            `json:"hash"`
	Assessment *types.Assessment `json:"assessment"`
}

// Document is the JSON export
type Document struct {
	Summary batch.Summary `json:"summary"`
	Results []Entry       `json:"results"`
	Failed  []Failure     `json:"failed,omitempty"`
}

// Failure is an item that errored
type Failure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// WriteJSON writes the summary and every settled item as indented JSON
func WriteJSON(w io.Writer, items []batch.ImageFile) error {
	doc := Document{
		Summary: batch.Summarize(items),
		Results: []Entry{},
	}
	for _, item := range items {
		switch {
		case item.Status == batch.StatusCompleted && item.Result != nil:
			doc.Results = append(doc.Results, Entry{
				Filename:   item.Name,
				Path:       item.Path,
				Hash:       item.Hash,
				Assessment: item.Result,
			})
		case item.Status == batch.StatusError:
			doc.Failed = append(doc.Failed, Failure{Filename: item.Name, Error: item.Error})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func field(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
