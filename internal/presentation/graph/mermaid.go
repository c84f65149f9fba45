package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/realizer"
)

// GraphOverlay contains conversation data to visualize on the graph.
type GraphOverlay struct {
	// VisitedNodes are intent names, typically a history's node order.
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart of the template call graph.
// Each domain is a subgraph. It applies semantic styling:
// - Intent: ((Circle))
// - Switch template: {{Hexagon}}
// - Default: [Rectangle]
// Invocations across domains are dotted; conditional ones carry their
// conditions as a label. It also applies overlay styles (Visited/Current)
// if provided.
func GenerateMermaid(c *domain.Catalog, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var edges []string
	for _, dname := range sortedKeys(c.Domains) {
		d := c.Domains[dname]
		sb.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", sanitizeMermaidID("domain/"+dname), dname))

		for _, tname := range sortedKeys(d.Templates) {
			t := d.Templates[tname]
			safeID := sanitizeMermaidID(dname + "/" + tname)

			opener, closer := "[", "]"
			switch {
			case c.IsIntent(tname) && c.SchemaMap[tname] == dname:
				opener, closer = "((", "))"
			case t.Switch:
				opener, closer = "{{", "}}"
			}
			sb.WriteString(fmt.Sprintf("        %s%s\"%s\"%s\n", safeID, opener, tname, closer))

			seen := make(map[string]bool)
			for _, form := range t.Forms {
				for _, callee := range realizer.Invocations(form.Text) {
					_, defining, err := c.Resolve(dname, callee)
					if err != nil {
						continue
					}
					safeTo := sanitizeMermaidID(defining + "/" + callee)
					label := strings.ReplaceAll(strings.Join(form.Conditions, " && "), "\"", "'")

					arrow := "-->"
					jump := defining != dname
					switch {
					case label != "" && jump:
						arrow = fmt.Sprintf("-. \"%s\" .->", label)
					case label != "":
						arrow = fmt.Sprintf("-- \"%s\" -->", label)
					case jump:
						arrow = "-.->"
					}
					edge := fmt.Sprintf("    %s %s %s\n", safeID, arrow, safeTo)
					if !seen[edge] {
						seen[edge] = true
						edges = append(edges, edge)
					}
				}
			}
		}
		sb.WriteString("    end\n")
	}
	for _, e := range edges {
		sb.WriteString(e)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, name := range overlay.VisitedNodes {
			owner, ok := c.Owner(name)
			if !ok {
				continue
			}
			safeID := sanitizeMermaidID(owner + "/" + name)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if owner, ok := c.Owner(overlay.CurrentNode); ok {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(owner+"/"+overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
