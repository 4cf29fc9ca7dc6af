package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/newstandard/academy/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// allowOrderings drops the orderings on fields outside allowed.
func (ord *Ordering) allowOrderings(allowed ...string) {
	kept := ord.Orderings[:0]
	for _, o := range ord.Orderings {
		for _, f := range allowed {
			if o.Field == f {
				kept = append(kept, o)
				break
			}
		}
	}
	ord.Orderings = kept
}
