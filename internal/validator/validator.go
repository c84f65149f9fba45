package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/realizer"
)

// Issue is one problem found in a catalog.
type Issue struct {
	Domain   string
	Template string
	Message  string
}

func (i Issue) String() string {
	if i.Template == "" {
		return fmt.Sprintf("%s: %s", i.Domain, i.Message)
	}
	return fmt.Sprintf("%s/%s: %s", i.Domain, i.Template, i.Message)
}

// Validate lints the catalog and folds every issue into one error.
func Validate(c *domain.Catalog) error {
	issues := Lint(c)
	if len(issues) == 0 {
		return nil
	}
	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = issue.String()
	}
	return fmt.Errorf("found %d errors:\n- %s", len(issues), strings.Join(lines, "\n- "))
}

// Lint reports problems a render would only hit at runtime: imports of
// unknown domains or templates, invocations of unknown templates,
// static invocation cycles and unbalanced brackets in conditions.
// Issues are sorted by domain and template.
func Lint(c *domain.Catalog) []Issue {
	var issues []Issue
	edges := make(map[string][]string)

	for _, dname := range sortedKeys(c.Domains) {
		d := c.Domains[dname]

		for _, imp := range d.Imports {
			src, ok := c.Domains[imp.From]
			if !ok {
				issues = append(issues, Issue{Domain: dname, Message: fmt.Sprintf("imports unknown domain %q", imp.From)})
				continue
			}
			for _, name := range imp.Templates {
				if _, ok := src.Templates[name]; !ok {
					issues = append(issues, Issue{Domain: dname, Message: fmt.Sprintf("imports %q which domain %q does not define", name, imp.From)})
				}
			}
		}

		for _, tname := range sortedKeys(d.Templates) {
			node := dname + "/" + tname
			for i, form := range d.Templates[tname].Forms {
				for _, cond := range form.Conditions {
					if msg := checkBrackets(cond); msg != "" {
						issues = append(issues, Issue{Domain: dname, Template: tname, Message: fmt.Sprintf("form %d: condition %q: %s", i, cond, msg)})
					}
				}
				for _, callee := range realizer.Invocations(form.Text) {
					_, defining, err := c.Resolve(dname, callee)
					if err != nil {
						issues = append(issues, Issue{Domain: dname, Template: tname, Message: fmt.Sprintf("form %d: invokes unknown template %q", i, callee)})
						continue
					}
					edges[node] = appendUnique(edges[node], defining+"/"+callee)
				}
			}
		}
	}

	for _, cycle := range cycles(edges) {
		dname, tname, _ := strings.Cut(cycle[0], "/")
		issues = append(issues, Issue{
			Domain:   dname,
			Template: tname,
			Message:  "invocation cycle " + strings.Join(append(cycle, cycle[0]), " -> "),
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Domain != issues[j].Domain {
			return issues[i].Domain < issues[j].Domain
		}
		return issues[i].Template < issues[j].Template
	})
	return issues
}

func checkBrackets(expr string) string {
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}, {"{", "}"}} {
		if strings.Count(expr, pair[0]) != strings.Count(expr, pair[1]) {
			return fmt.Sprintf("unbalanced %s %s", pair[0], pair[1])
		}
	}
	return ""
}

// cycles returns one path per distinct cycle of the graph, each rotated to
// start at its smallest node.
func cycles(edges map[string][]string) [][]string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int)
	seen := make(map[string]bool)
	var (
		out   [][]string
		stack []string
		visit func(string)
	)
	visit = func(n string) {
		state[n] = active
		stack = append(stack, n)
		for _, next := range edges[n] {
			switch state[next] {
			case unvisited:
				visit(next)
			case active:
				i := len(stack) - 1
				for stack[i] != next {
					i--
				}
				cycle := rotate(append([]string(nil), stack[i:]...))
				if key := strings.Join(cycle, ","); !seen[key] {
					seen[key] = true
					out = append(out, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
	}

	nodes := make([]string, 0, len(edges))
	for n := range edges {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if state[n] == unvisited {
			visit(n)
		}
	}
	return out
}

func rotate(cycle []string) []string {
	lo := 0
	for i, n := range cycle {
		if n < cycle[lo] {
			lo = i
		}
	}
	return append(cycle[lo:], cycle[:lo]...)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
