package trace

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conceptrt/conceptrt/model"
)

// glyph returns the status indicator used in the pretty-tree renderer, a
// single leading glyph per line.
func glyph(variant string) string {
	switch variant {
	case model.VariantOK:
		return "✓"
	case model.VariantError:
		return "✗"
	default:
		return "•"
	}
}

// hasFailure reports whether a node's subtree should print under an
// `{ failed: true }` filter: the node itself errored, or some descendant
// did — `ok` subtrees are elided entirely.
func hasFailure(n *Node) bool {
	if n == nil {
		return false
	}
	if n.Variant == model.VariantError {
		return true
	}
	for _, e := range n.Children {
		if e.Unfired {
			continue
		}
		if hasFailure(e.Result) {
			return true
		}
	}
	return false
}

// Pretty renders ft as an indented tree with status glyphs. If failedOnly is
// set, subtrees with no error anywhere inside are elided.
func Pretty(ft *FlowTrace, failedOnly bool) string {
	if ft == nil || ft.Root == nil {
		return "(empty flow)\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "flow %s [%s]\n", ft.FlowID.String(), ft.Status)
	writeNode(&sb, ft.Root, "", failedOnly)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, prefix string, failedOnly bool) {
	fmt.Fprintf(sb, "%s%s %s/%s (%dms)\n", prefix, glyph(n.Variant), n.Concept, n.Action, n.DurationMs)
	childPrefix := prefix + "  "
	for _, e := range n.Children {
		if e.Unfired {
			if failedOnly {
				continue
			}
			fmt.Fprintf(sb, "%s↳ [%s] ✗ unfired: %s\n", childPrefix, e.Sync, e.Reason)
			continue
		}
		if failedOnly && !hasFailure(e.Result) {
			continue
		}
		fmt.Fprintf(sb, "%s↳ [%s]\n", childPrefix, e.Sync)
		writeNode(sb, e.Result, childPrefix+"  ", failedOnly)
	}
}

// jsonNode/jsonEdge mirror Node/Edge with only the fields worth serializing
// (CompletionID renders as hex, and a nil Result is simply omitted).
type jsonEdge struct {
	Sync    string    `json:"sync"`
	Unfired bool      `json:"unfired,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Result  *jsonNode `json:"result,omitempty"`
}

type jsonNode struct {
	CompletionID string     `json:"completionId"`
	Concept      string     `json:"concept"`
	Action       string     `json:"action"`
	Variant      string     `json:"variant"`
	DurationMs   int64      `json:"durationMs"`
	Children     []jsonEdge `json:"children,omitempty"`
}

type jsonTrace struct {
	FlowID string    `json:"flowId"`
	Status Status    `json:"status"`
	Root   *jsonNode `json:"root"`
}

// JSON renders ft for programmatic consumers.
func JSON(ft *FlowTrace, failedOnly bool) ([]byte, error) {
	if ft == nil || ft.Root == nil {
		return json.Marshal(map[string]interface{}{})
	}
	out := jsonTrace{FlowID: ft.FlowID.String(), Status: ft.Status, Root: toJSONNode(ft.Root, failedOnly)}
	return json.MarshalIndent(out, "", "  ")
}

func toJSONNode(n *Node, failedOnly bool) *jsonNode {
	if n == nil {
		return nil
	}
	jn := &jsonNode{
		CompletionID: n.CompletionID.String(),
		Concept:      n.Concept,
		Action:       n.Action,
		Variant:      n.Variant,
		DurationMs:   n.DurationMs,
	}
	for _, e := range n.Children {
		if e.Unfired {
			if failedOnly {
				continue
			}
			jn.Children = append(jn.Children, jsonEdge{Sync: e.Sync, Unfired: true, Reason: e.Reason})
			continue
		}
		if failedOnly && !hasFailure(e.Result) {
			continue
		}
		jn.Children = append(jn.Children, jsonEdge{Sync: e.Sync, Result: toJSONNode(e.Result, failedOnly)})
	}
	return jn
}
