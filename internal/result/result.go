// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package result builds the structured result view from the raw response
// data of a successful query exchange. It validates the shape of the
// service's answer; iteration and type coercion beyond strings are the
// caller's concern.
package result

import (
	"encoding/json"
	"fmt"
	"sort"

	"frostline/cli/internal/api"
	"frostline/cli/internal/sferr"
)

// Column describes one result column: its name and the service's type tag.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is a normalized query result. Cells are strings or nil.
type Result struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Total   int64    `json:"total,omitempty"`
	QueryID string   `json:"query_id,omitempty"`
}

// rawData is the wire shape of the data section of a query response.
type rawData struct {
	RowType []Column    `json:"rowtype"`
	RowSet  [][]*string `json:"rowset"`
	Total   int64       `json:"total"`
	QueryID string      `json:"queryId"`
}

// Build validates raw response data and produces the structured view.
// When sortEnabled is set, rows are ordered by their first column, nulls
// first. Validation failures carry the malformed-response kind; callers wrap
// anything else as an internal incident.
func Build(raw *api.RawResult, sortEnabled bool) (*Result, error) {
	if raw == nil || len(raw.Data) == 0 {
		return nil, sferr.New(sferr.MalformedResponse, "response has no data section")
	}

	var d rawData
	if err := json.Unmarshal(raw.Data, &d); err != nil {
		return nil, sferr.Wrap(sferr.MalformedResponse, "decoding result data", err)
	}
	if len(d.RowType) == 0 {
		return nil, sferr.New(sferr.MalformedResponse, "result has no row type metadata")
	}

	rows := make([][]any, len(d.RowSet))
	for i, r := range d.RowSet {
		if len(r) != len(d.RowType) {
			return nil, sferr.New(sferr.MalformedResponse,
				fmt.Sprintf("row %d has %d cells, want %d", i, len(r), len(d.RowType)))
		}
		row := make([]any, len(r))
		for j, c := range r {
			if c == nil {
				row[j] = nil
			} else {
				row[j] = *c
			}
		}
		rows[i] = row
	}

	if sortEnabled {
		sortRows(rows)
	}

	return &Result{
		Columns: d.RowType,
		Rows:    rows,
		Total:   d.Total,
		QueryID: d.QueryID,
	}, nil
}

// sortRows orders rows by their first column lexicographically, nulls first.
func sortRows(rows [][]any) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := rows[i][0].(string)
		b, bok := rows[j][0].(string)
		if !aok {
			return bok // nil before non-nil, equal to other nils
		}
		if !bok {
			return false
		}
		return a < b
	})
}

// FixedView builds a client-side result that never touched the service, used
// for file transfer summaries.
func FixedView(cols []Column, rows [][]any) *Result {
	return &Result{Columns: cols, Rows: rows}
}
