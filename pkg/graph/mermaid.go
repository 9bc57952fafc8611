package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/avhart/espalier/pkg/domain"
)

// Overlay contains dynamic state data to visualize on top of the graph.
type Overlay struct {
	Visited []string
	Current string
}

var mermaidIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func sanitizeMermaidID(id string) string {
	return mermaidIDSanitizer.ReplaceAllString(id, "_")
}

// Mermaid renders the declared graph as a Mermaid flowchart. The entry node
// is drawn as a circle and the terminal sentinel as a double circle. Edges
// are the declared (advisory) ones; runtime jumps outside the edge table are
// by definition not visible here.
func (w *Workflow) Mermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	hasEnd := false
	for _, name := range w.order {
		for _, to := range w.edges[name] {
			if to == domain.StepEnd {
				hasEnd = true
			}
		}
	}

	for _, name := range w.order {
		safeID := sanitizeMermaidID(name)
		opener, closer := "[", "]"
		if name == w.entry {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, name, closer)
	}
	if hasEnd {
		sb.WriteString("    __end__(((\"end\")))\n")
	}

	for _, name := range w.order {
		safeID := sanitizeMermaidID(name)
		for _, to := range w.edges[name] {
			if to == domain.StepEnd {
				fmt.Fprintf(&sb, "    %s --> __end__\n", safeID)
				continue
			}
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(to))
		}
	}

	if overlay != nil {
		visited := make([]string, 0, len(overlay.Visited))
		seen := map[string]bool{}
		for _, v := range overlay.Visited {
			if !seen[v] {
				seen[v] = true
				visited = append(visited, v)
			}
		}
		sort.Strings(visited)
		for _, v := range visited {
			fmt.Fprintf(&sb, "    style %s fill:#d3f9d8\n", sanitizeMermaidID(v))
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    style %s fill:#ffe066,stroke:#f08c00\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}
