// Package query parses the OData query options supported on schema
// listings ($filter with an equality predicate, $orderby, $top) and
// applies them in memory to assembled result entries.
package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Options holds the parsed query options of a listing request.
type Options struct {
	Filter  *Filter
	OrderBy []OrderByItem
	Top     *int
}

// Filter is a single equality predicate: Property eq Literal.
type Filter struct {
	Property string
	Value    interface{}
}

// OrderByItem is one $orderby segment.
type OrderByItem struct {
	Property   string
	Descending bool
}

// ParseOptions parses the supported query options from the request URL.
func ParseOptions(values url.Values) (*Options, error) {
	options := &Options{}

	if raw := values.Get("$filter"); raw != "" {
		filter, err := parseFilter(raw)
		if err != nil {
			return nil, err
		}
		options.Filter = filter
	}

	if raw := values.Get("$orderby"); raw != "" {
		orderBy, err := parseOrderBy(raw)
		if err != nil {
			return nil, err
		}
		options.OrderBy = orderBy
	}

	if raw := values.Get("$top"); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil || top < 0 {
			return nil, fmt.Errorf("invalid $top value '%s'", raw)
		}
		options.Top = &top
	}

	return options, nil
}

// parseFilter parses "Property eq literal". Only the equality operator is
// supported on schema listings.
func parseFilter(raw string) (*Filter, error) {
	idx := strings.Index(raw, " eq ")
	if idx < 0 {
		return nil, fmt.Errorf("unsupported $filter expression '%s'", raw)
	}

	property := strings.TrimSpace(raw[:idx])
	literal := strings.TrimSpace(raw[idx+len(" eq "):])
	if property == "" || literal == "" {
		return nil, fmt.Errorf("unsupported $filter expression '%s'", raw)
	}

	value, err := parseLiteral(literal)
	if err != nil {
		return nil, err
	}
	return &Filter{Property: property, Value: value}, nil
}

func parseLiteral(literal string) (interface{}, error) {
	if len(literal) >= 2 && literal[0] == '\'' && literal[len(literal)-1] == '\'' {
		// OData string literals double embedded quotes.
		return strings.ReplaceAll(literal[1:len(literal)-1], "''", "'"), nil
	}
	switch literal {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if _, err := strconv.ParseFloat(literal, 64); err == nil {
		return json.Number(literal), nil
	}
	return nil, fmt.Errorf("invalid literal '%s'", literal)
}

func parseOrderBy(raw string) ([]OrderByItem, error) {
	parts := strings.Split(raw, ",")
	result := make([]OrderByItem, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		tokens := strings.Fields(trimmed)
		item := OrderByItem{Property: tokens[0]}

		if len(tokens) > 1 {
			switch strings.ToLower(tokens[1]) {
			case "desc":
				item.Descending = true
			case "asc":
			default:
				return nil, fmt.Errorf("invalid direction '%s', expected 'asc' or 'desc'", tokens[1])
			}
		}

		result = append(result, item)
	}

	return result, nil
}

// Apply filters, orders and truncates the entries in place of a database
// query; schema listings are small enough to evaluate in memory.
func (o *Options) Apply(entries []map[string]interface{}) []map[string]interface{} {
	result := entries

	if o.Filter != nil {
		filtered := make([]map[string]interface{}, 0, len(result))
		for _, entry := range result {
			if literalsEqual(entry[o.Filter.Property], o.Filter.Value) {
				filtered = append(filtered, entry)
			}
		}
		result = filtered
	}

	if len(o.OrderBy) > 0 {
		sort.SliceStable(result, func(i, j int) bool {
			for _, item := range o.OrderBy {
				cmp := compareValues(result[i][item.Property], result[j][item.Property])
				if cmp == 0 {
					continue
				}
				if item.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if o.Top != nil && *o.Top < len(result) {
		result = result[:*o.Top]
	}

	return result
}

func literalsEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, aok := toFloat(a); aok {
		nb, bok := toFloat(b)
		return bok && na == nb
	}
	return a == b
}

func compareValues(a, b interface{}) int {
	if na, aok := toFloat(a); aok {
		if nb, bok := toFloat(b); bok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
