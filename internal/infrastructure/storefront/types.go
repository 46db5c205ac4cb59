package storefront

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/erp/storefront-sync/internal/domain/integration"
)

// ordersPage is one page of GET orders.json. Orders stay raw so that a single
// malformed order does not poison the whole page.
type ordersPage struct {
	Orders []json.RawMessage `json:"orders"`
}

type productEnvelope struct {
	Product *integration.StorefrontProduct `json:"product"`
}

// errorBody is the admin API error payload; errors is either a string or an
// object of field -> messages
type errorBody struct {
	Errors json.RawMessage `json:"errors"`
}

func (e errorBody) message() string {
	if len(e.Errors) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Errors, &s); err == nil {
		return s
	}
	var fields map[string][]string
	if err := json.Unmarshal(e.Errors, &fields); err == nil {
		parts := make([]string, 0, len(fields))
		for field, msgs := range fields {
			parts = append(parts, fmt.Sprintf("%s %s", field, strings.Join(msgs, ", ")))
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	return string(e.Errors)
}
