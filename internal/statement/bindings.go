// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package statement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"frostline/cli/internal/api"
	"frostline/cli/internal/sferr"
)

// BindValue binds a single value with the given type tag to a named
// parameter. Last write wins. The type tag is opaque here; the service
// validates it.
func (s *Statement) BindValue(name, value, typ string) {
	s.bindings[name] = api.Binding{Value: value, Type: typ}
}

// BindValues binds a list of values with the given type tag to a named
// parameter, for batch executions.
func (s *Statement) BindValues(name string, values []string, typ string) {
	s.bindings[name] = api.Binding{Value: values, Type: typ}
}

// ClearBindings drops all parameter bindings.
func (s *Statement) ClearBindings() {
	s.bindings = make(map[string]api.Binding)
}

// optionSetter applies a recognized option's client-side effect. The table
// below is the full set of option names with client-side behavior; anything
// else is stored opaquely and shipped to the service.
type optionSetter func(s *Statement, value any) error

var reservedOptions = map[string]optionSetter{
	// Query timeout is enforced on the client for now.
	"query_timeout": (*Statement).setQueryTimeout,
}

// SetOption upserts a statement-level option. Exceeding the option cap is a
// hard failure at insertion time and the write is not applied.
func (s *Statement) SetOption(name string, value any) error {
	if _, exists := s.options[name]; !exists && len(s.options) >= MaxStatementOptions {
		return sferr.New(sferr.TooManyStatementOptions,
			fmt.Sprintf("statement option cap of %d reached", MaxStatementOptions))
	}

	// Option names with client-side behavior match case-insensitively.
	if setter, ok := reservedOptions[strings.ToLower(name)]; ok {
		if err := setter(s, value); err != nil {
			return err
		}
	}

	s.options[name] = value
	return nil
}

func (s *Statement) setQueryTimeout(value any) error {
	secs, err := asSeconds(value)
	if err != nil {
		return err
	}
	s.queryTimeout = time.Duration(secs) * time.Second
	return nil
}

// asSeconds accepts the integer shapes an option value can arrive in
// (including float64 from decoded JSON and numeric strings).
func asSeconds(value any) (int64, error) {
	var secs int64
	switch v := value.(type) {
	case int:
		secs = int64(v)
	case int64:
		secs = v
	case float64:
		secs = int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, sferr.Wrap(sferr.InvalidOptionValue, "query_timeout must be an integer", err)
		}
		secs = n
	default:
		return 0, sferr.New(sferr.InvalidOptionValue, fmt.Sprintf("query_timeout must be an integer, got %T", value))
	}
	if secs < 0 {
		return 0, sferr.New(sferr.InvalidOptionValue, "query_timeout must be non-negative")
	}
	return secs, nil
}

// cloneBindings snapshots the binding map for one request descriptor.
func cloneBindings(m map[string]api.Binding) map[string]api.Binding {
	out := make(map[string]api.Binding, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneOptions snapshots the option map for one request descriptor.
func cloneOptions(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
