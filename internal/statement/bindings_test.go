// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package statement

import (
	"fmt"
	"testing"
	"time"

	"frostline/cli/internal/sferr"
)

func TestSetOptionCap(t *testing.T) {
	st := newTestStatement(&stubTransport{}, newStubSession())

	for i := 0; i < MaxStatementOptions; i++ {
		if err := st.SetOption(fmt.Sprintf("opt_%d", i), i); err != nil {
			t.Fatalf("SetOption %d: %v", i, err)
		}
	}

	err := st.SetOption("one_too_many", 1)
	wantKind(t, err, sferr.TooManyStatementOptions)
	if _, ok := st.options["one_too_many"]; ok {
		t.Error("rejected option was stored anyway")
	}

	// Updating an existing option is not an insertion and stays allowed.
	if err := st.SetOption("opt_0", "updated"); err != nil {
		t.Fatalf("update at cap: %v", err)
	}
	if st.options["opt_0"] != "updated" {
		t.Error("update at cap did not take effect")
	}
}

func TestQueryTimeoutOption(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{"int", 5, 5 * time.Second},
		{"int64", int64(90), 90 * time.Second},
		{"float64 from json", float64(30), 30 * time.Second},
		{"numeric string", "7", 7 * time.Second},
		{"zero disables", 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := newTestStatement(&stubTransport{}, newStubSession())
			if err := st.SetOption("query_timeout", tc.value); err != nil {
				t.Fatalf("SetOption: %v", err)
			}
			if st.queryTimeout != tc.want {
				t.Errorf("queryTimeout = %v, want %v", st.queryTimeout, tc.want)
			}
			if st.options["query_timeout"] != tc.value {
				t.Error("option value not recorded for the request descriptor")
			}
		})
	}
}

func TestQueryTimeoutOptionCaseInsensitive(t *testing.T) {
	st := newTestStatement(&stubTransport{}, newStubSession())
	if err := st.SetOption("QUERY_TIMEOUT", 12); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if st.queryTimeout != 12*time.Second {
		t.Errorf("queryTimeout = %v, want 12s", st.queryTimeout)
	}
}

func TestQueryTimeoutOptionInvalid(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"negative", -1},
		{"non numeric string", "soon"},
		{"wrong type", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := newTestStatement(&stubTransport{}, newStubSession())
			err := st.SetOption("query_timeout", tc.value)
			wantKind(t, err, sferr.InvalidOptionValue)
			if _, ok := st.options["query_timeout"]; ok {
				t.Error("invalid option value was stored")
			}
		})
	}
}

func TestBindings(t *testing.T) {
	st := newTestStatement(&stubTransport{}, newStubSession())

	st.BindValue("1", "42", "FIXED")
	st.BindValue("2", "hello", "TEXT")
	st.BindValue("2", "world", "TEXT") // last write wins
	st.BindValues("3", []string{"a", "b"}, "TEXT")

	if len(st.bindings) != 3 {
		t.Fatalf("bindings = %d, want 3", len(st.bindings))
	}
	if st.bindings["2"].Value != "world" {
		t.Errorf("binding 2 = %v, want world", st.bindings["2"].Value)
	}

	snap := cloneBindings(st.bindings)
	st.BindValue("4", "late", "TEXT")
	if _, ok := snap["4"]; ok {
		t.Error("snapshot observed a later bind")
	}

	st.ClearBindings()
	if len(st.bindings) != 0 {
		t.Errorf("bindings after clear = %d, want 0", len(st.bindings))
	}
}
