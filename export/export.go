// Package export renders resolved tag trees to CSV, JSON, XML, XLSX,
// and Markdown. All writers are pure: they take a tree and an output
// and touch nothing else.
package export

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"tagscan/resolver"
	"tagscan/session"
)

// Row is one flattened leaf: the top-level tag it belongs to, its full
// dotted path, and the type name.
type Row struct {
	Tag  string
	Path string
	Type string
}

// Flatten walks the tree depth-first and returns one Row per leaf.
// Structured nodes contribute their leaves, not themselves; every row
// carries the name of the top-level tag it descends from.
func Flatten(roots []*resolver.TagNode) []Row {
	var rows []Row
	var walk func(n *resolver.TagNode, rootTag string)
	walk = func(n *resolver.TagNode, rootTag string) {
		if n == nil {
			return
		}
		if n.IsLeaf() {
			rows = append(rows, Row{Tag: rootTag, Path: n.Path, Type: n.TypeName})
			return
		}
		for _, m := range n.Members {
			walk(m, rootTag)
		}
	}
	for _, root := range roots {
		if root == nil {
			continue
		}
		walk(root, root.Name)
	}
	return rows
}

// WriteCSV writes the flattened tree with a header row.
func WriteCSV(w io.Writer, roots []*resolver.TagNode) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Tag", "Full Path", "Data Type"}); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	for _, row := range Flatten(roots) {
		if err := cw.Write([]string{row.Tag, row.Path, row.Type}); err != nil {
			return fmt.Errorf("WriteCSV: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

type jsonNode struct {
	Name     string     `json:"name"`
	DataType string     `json:"dataType"`
	Members  []jsonNode `json:"members,omitempty"`
}

func toJSONNode(n *resolver.TagNode) jsonNode {
	out := jsonNode{Name: n.Name, DataType: n.TypeName}
	for _, m := range n.Members {
		out.Members = append(out.Members, toJSONNode(m))
	}
	return out
}

// WriteJSON writes the tree nested, two-space indented.
func WriteJSON(w io.Writer, roots []*resolver.TagNode) error {
	nodes := make([]jsonNode, 0, len(roots))
	for _, root := range roots {
		if root == nil {
			continue
		}
		nodes = append(nodes, toJSONNode(root))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nodes); err != nil {
		return fmt.Errorf("WriteJSON: %w", err)
	}
	return nil
}

type xmlMember struct {
	XMLName  xml.Name    `xml:"Member"`
	Name     string      `xml:"name,attr"`
	DataType string      `xml:"dataType,attr"`
	Members  []xmlMember `xml:"Member,omitempty"`
}

type xmlTag struct {
	XMLName  xml.Name    `xml:"Tag"`
	Name     string      `xml:"name,attr"`
	DataType string      `xml:"dataType,attr"`
	Members  []xmlMember `xml:"Member,omitempty"`
}

type xmlDoc struct {
	XMLName xml.Name `xml:"Tags"`
	Tags    []xmlTag `xml:"Tag"`
}

func toXMLMembers(members []*resolver.TagNode) []xmlMember {
	var out []xmlMember
	for _, m := range members {
		out = append(out, xmlMember{
			Name:     m.Name,
			DataType: m.TypeName,
			Members:  toXMLMembers(m.Members),
		})
	}
	return out
}

// WriteXML writes the tree as nested Tag/Member elements with an XML
// declaration.
func WriteXML(w io.Writer, roots []*resolver.TagNode) error {
	doc := xmlDoc{}
	for _, root := range roots {
		if root == nil {
			continue
		}
		doc.Tags = append(doc.Tags, xmlTag{
			Name:     root.Name,
			DataType: root.TypeName,
			Members:  toXMLMembers(root.Members),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("WriteXML: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("WriteXML: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("WriteXML: %w", err)
	}
	return nil
}

// WriteXLSX writes the flattened tree to an Excel workbook at path,
// one sheet named Tags with a bold header row.
func WriteXLSX(path string, roots []*resolver.TagNode) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Tags"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	headers := []string{"Tag", "Full Path", "Data Type"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("WriteXLSX: %w", err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	for i, row := range Flatten(roots) {
		values := []string{row.Tag, row.Path, row.Type}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("WriteXLSX: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}

// WriteMarkdownReport writes a human-readable scan report: controller
// identity, the flattened tag table, and anything that failed during
// the scan.
func WriteMarkdownReport(w io.Writer, info *session.ControllerInfo, tags *resolver.ControllerTags) error {
	var b []byte
	appendf := func(format string, args ...interface{}) {
		b = append(b, fmt.Sprintf(format, args...)...)
	}

	appendf("# Tag Scan Report\n\n")
	if info != nil {
		appendf("| | |\n|---|---|\n")
		appendf("| Address | %s |\n", info.Address)
		appendf("| Slot | %d |\n", info.Slot)
		if info.ProductName != "" {
			appendf("| Product | %s |\n", info.ProductName)
		}
		if info.Revision != "" {
			appendf("| Revision | %s |\n", info.Revision)
		}
		if info.Serial != "" {
			appendf("| Serial | %s |\n", info.Serial)
		}
		appendf("\n")
	}

	appendf("## Tags\n\n")
	appendf("| Tag | Full Path | Data Type |\n|---|---|---|\n")
	if tags != nil {
		for _, row := range Flatten(tags.Roots) {
			appendf("| %s | %s | %s |\n", row.Tag, row.Path, row.Type)
		}
	}

	if tags != nil && (len(tags.FailedScopes) > 0 || len(tags.FailedTags) > 0) {
		appendf("\n## Failures\n\n")
		for _, f := range tags.FailedScopes {
			scope := f.Scope
			if scope == "" {
				scope = "controller"
			}
			appendf("- scope `%s`: %v\n", scope, f.Err)
		}
		for _, f := range tags.FailedTags {
			appendf("- tag `%s`: %v\n", f.Tag, f.Err)
		}
	}

	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("WriteMarkdownReport: %w", err)
	}
	return nil
}
