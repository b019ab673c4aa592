// Package validate checks generated dashboards and rules: every PromQL
// expression must parse and reference only known metrics.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/restock-tracker/tools/dashgen/rules"
)

// Result collects validation problems. Errors fail generation; warnings are
// reported only.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether no errors were found.
func (r Result) Ok() bool { return len(r.Errors) == 0 }

// Merge appends other's findings to r.
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Expr parses expr and checks its metric names against known.
func Expr(where, expr string, known map[string]bool) Result {
	var res Result

	node, err := parser.ParseExpr(expr)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: invalid PromQL %q: %v", where, expr, err))
		return res
	}

	for _, name := range Metrics(node) {
		if !known[name] {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: unknown metric %q", where, name))
		}
	}
	if strings.Contains(expr, "rate(") && !strings.Contains(expr, "[") {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: rate without a range selector", where))
	}
	return res
}

// Metrics returns the metric names selected by node.
func Metrics(node parser.Node) []string {
	var names []string
	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		if vs, ok := n.(*parser.VectorSelector); ok && vs.Name != "" {
			names = append(names, vs.Name)
		}
		return nil
	})
	return names
}

// DashboardJSON walks an encoded dashboard and validates every target
// expression.
func DashboardJSON(data []byte, known map[string]bool) Result {
	var (
		res  Result
		root any
	)
	if err := json.Unmarshal(data, &root); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("dashboard: %v", err))
		return res
	}

	exprs := 0
	walk(root, "", func(title, expr string) {
		exprs++
		res.Merge(Expr("panel "+title, expr, known))
	})
	if exprs == 0 {
		res.Errors = append(res.Errors, "dashboard: no query targets found")
	}
	return res
}

// walk calls fn for every "expr" string, passing the closest enclosing
// panel title.
func walk(v any, title string, fn func(title, expr string)) {
	switch t := v.(type) {
	case map[string]any:
		if s, ok := t["title"].(string); ok {
			title = s
		}
		if e, ok := t["expr"].(string); ok {
			fn(title, e)
		}
		for _, child := range t {
			walk(child, title, fn)
		}
	case []any:
		for _, child := range t {
			walk(child, title, fn)
		}
	}
}

// Rules validates every expression in cr and checks that alerts carry the
// labels and annotations routing depends on.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var res Result
	for _, g := range cr.Spec.Groups {
		for _, r := range g.Rules {
			where := cr.Metadata.Name + "/" + r.Record + r.Alert
			switch {
			case r.Record != "" && r.Alert != "":
				res.Errors = append(res.Errors, where+": rule is both recording and alerting")
			case r.Record == "" && r.Alert == "":
				res.Errors = append(res.Errors, where+": rule has neither record nor alert")
			}
			if r.Record != "" && !known[r.Record] {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: recording rule not in known metrics", where))
			}
			if r.Alert != "" {
				if r.Labels["severity"] == "" {
					res.Errors = append(res.Errors, where+": alert missing severity")
				}
				if r.Annotations["summary"] == "" {
					res.Errors = append(res.Errors, where+": alert missing summary")
				}
			}
			res.Merge(Expr(where, r.Expr, known))
		}
	}
	return res
}
