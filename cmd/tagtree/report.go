package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/reoring/tagtree"
	"github.com/reoring/tagtree/i18n"
)

type reportWriter struct {
	format string
}

func newReportWriter(format string) (reportWriter, error) {
	switch format {
	case "text", "json":
		return reportWriter{format: format}, nil
	}
	return reportWriter{}, fmt.Errorf("unknown format %q (want text or json)", format)
}

type jsonReport struct {
	File     string        `json:"file"`
	Status   string        `json:"status"`
	Problems []jsonProblem `json:"problems"`
}

type jsonProblem struct {
	Path    string `json:"path"`
	Node    string `json:"node"`
	Tag     string `json:"tag,omitempty"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func headline(p tagtree.Problem) string {
	return i18n.T(p.Code, map[string]string{"tag": p.Tag})
}

func (rw reportWriter) write(w io.Writer, file string, r *tagtree.Report) error {
	if rw.format == "json" {
		out := jsonReport{File: file, Status: r.Status.String(), Problems: []jsonProblem{}}
		for _, p := range r.Problems {
			out.Problems = append(out.Problems, jsonProblem{
				Path:    p.Path.Pointer(),
				Node:    p.Node.Pointer(),
				Tag:     p.Tag,
				Code:    p.Code,
				Title:   headline(p),
				Message: p.Message,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if r.Valid() {
		_, err := fmt.Fprintf(w, "%s: valid\n", file)
		return err
	}
	for _, p := range r.Problems {
		if _, err := fmt.Fprintf(w, "%s:%s: %s: %s\n", file, p.Path.Pointer(), headline(p), p.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s: %d problem(s)\n", file, len(r.Problems))
	return err
}
