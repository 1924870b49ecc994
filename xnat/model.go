package xnat

import (
	"errors"
	"fmt"
)

// ErrInvalidSegment is returned when a type or format cannot stand as a
// single path segment of the archive request.
var ErrInvalidSegment = errors.New("invalid path segment")

// Kind names the sort of collection being bundled. It becomes part of
// the default archive name.
type Kind string

const (
	KindScans           Kind = "Scans"
	KindAssessors       Kind = "Assessors"
	KindReconstructions Kind = "Reconstructions"
)

// ResultSet is the JSON envelope XNAT wraps listings in.
type ResultSet struct {
	ResultSet struct {
		Result       []map[string]any `json:"Result"`
		TotalRecords string           `json:"totalRecords"`
	} `json:"ResultSet"`
}

// IDs returns the ID column of every row that has one.
func (rs ResultSet) IDs() []string {
	ids := make([]string, 0, len(rs.ResultSet.Result))
	for _, row := range rs.ResultSet.Result {
		if v, ok := row["ID"]; ok && v != nil {
			ids = append(ids, fmt.Sprint(v))
		}
	}
	return ids
}
