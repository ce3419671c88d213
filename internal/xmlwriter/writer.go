// =============================================================================
// Statement Normalizer - XML Ledger Writer
// =============================================================================
//
// This module renders a ledger as XML for systems that cannot consume JSON
// Lines. The document mirrors the JSON form:
//
//   <ledger>
//     <metadata>
//       <source_file>...</source_file>
//       <import_id>...</import_id>
//       ...
//       <date_range start="2024-01-01" end="2024-01-31"/>
//     </metadata>
//     <transaction n="1">
//       <date>2024-01-01</date>
//       <description>...</description>
//       <amount>-12.50</amount>
//       <balance>987.50</balance>      (optional fields only when present)
//       <bank>IBI</bank>
//     </transaction>
//   </ledger>
//
// Amounts are written from their decimal string form, never via a float.
//
// CUSTOMIZATION:
//   - Element names are set in GenerateOptions
//   - RootAttributes adds namespace or version attributes to the root
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
)

// =============================================================================
// OPTIONS
// =============================================================================

// GenerateOptions controls the XML output.
type GenerateOptions struct {
	// Indent is the indentation string. Default: two spaces.
	Indent string

	// IncludeXMLDeclaration adds the <?xml ...?> line.
	IncludeXMLDeclaration bool

	XMLVersion string
	Encoding   string

	// RootAttributes are added to the root element, sorted by name.
	RootAttributes map[string]string

	RootElement        string
	MetadataElement    string
	TransactionElement string

	// TransactionIndexAttribute numbers transactions from 1. Empty disables it.
	TransactionIndexAttribute string
}

// DefaultGenerateOptions returns the default options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                    "  ",
		IncludeXMLDeclaration:     true,
		XMLVersion:                "1.0",
		Encoding:                  "UTF-8",
		RootAttributes:            make(map[string]string),
		RootElement:               "ledger",
		MetadataElement:           "metadata",
		TransactionElement:        "transaction",
		TransactionIndexAttribute: "n",
	}
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate renders the ledger with the default options.
func Generate(l *ledger.Ledger) ([]byte, error) {
	return GenerateWithOptions(l, DefaultGenerateOptions())
}

// GenerateWithOptions renders the ledger.
func GenerateWithOptions(l *ledger.Ledger, options GenerateOptions) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("no ledger to write")
	}
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		fmt.Fprintf(&buffer, "<?xml version=\"%s\" encoding=\"%s\"?>\n", options.XMLVersion, options.Encoding)
	}

	doc := buildDocument(l, options)
	buffer.Write(marshalWithIndent(doc, options.Indent))
	return buffer.Bytes(), nil
}

// Write renders the ledger to w.
func Write(w io.Writer, l *ledger.Ledger, options GenerateOptions) error {
	data, err := GenerateWithOptions(l, options)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}
	return nil
}

// XMLDocument is the root element.
type XMLDocument struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Children   []XMLElement
}

// XMLElement is a simple element: text or child elements, never both.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

func buildDocument(l *ledger.Ledger, options GenerateOptions) *XMLDocument {
	doc := &XMLDocument{XMLName: xml.Name{Local: options.RootElement}}

	keys := make([]string, 0, len(options.RootAttributes))
	for k := range options.RootAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		doc.Attributes = append(doc.Attributes, xml.Attr{Name: xml.Name{Local: k}, Value: options.RootAttributes[k]})
	}

	doc.Children = append(doc.Children, buildMetadataElement(l.Metadata(), options))
	for i, tx := range l.Transactions() {
		doc.Children = append(doc.Children, buildTransactionElement(tx, i+1, options))
	}
	return doc
}

func buildMetadataElement(m ledger.Metadata, options GenerateOptions) XMLElement {
	el := XMLElement{XMLName: xml.Name{Local: options.MetadataElement}}
	add := func(name, value string) {
		if value != "" {
			el.Children = append(el.Children, createSimpleElement(name, value))
		}
	}
	add("source_file", m.SourceFile)
	add("import_id", m.ImportID)
	add("imported_at", m.ImportedAt.UTC().Format(time.RFC3339))
	add("total_transactions", strconv.Itoa(m.TotalTransactions))
	add("bank", m.Bank)
	add("account", m.Account)
	add("encoding", m.Encoding)
	add("currency", m.Currency)

	rng := XMLElement{XMLName: xml.Name{Local: "date_range"}}
	if m.DateRange.IsSet() {
		rng.Attributes = []xml.Attr{
			{Name: xml.Name{Local: "start"}, Value: m.DateRange.Start.String()},
			{Name: xml.Name{Local: "end"}, Value: m.DateRange.End.String()},
		}
	}
	el.Children = append(el.Children, rng)
	return el
}

func buildTransactionElement(tx ledger.Transaction, n int, options GenerateOptions) XMLElement {
	el := XMLElement{XMLName: xml.Name{Local: options.TransactionElement}}
	if options.TransactionIndexAttribute != "" {
		el.Attributes = []xml.Attr{{Name: xml.Name{Local: options.TransactionIndexAttribute}, Value: strconv.Itoa(n)}}
	}

	el.Children = append(el.Children,
		createSimpleElement("date", tx.Date().String()),
		createSimpleElement("description", tx.Description()),
		createSimpleElement("amount", tx.Amount().String()),
	)
	if bal, ok := tx.Balance(); ok {
		el.Children = append(el.Children, createSimpleElement("balance", bal.String()))
	}
	for _, f := range []struct{ name, value string }{
		{"category", tx.Category()},
		{"reference", tx.Reference()},
		{"account", tx.Account()},
	} {
		if f.value != "" {
			el.Children = append(el.Children, createSimpleElement(f.name, f.value))
		}
	}
	el.Children = append(el.Children, createSimpleElement("bank", tx.Bank()))
	return el
}

func createSimpleElement(name, value string) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: name},
		Value:   value,
	}
}

// =============================================================================
// SERIALIZATION
// =============================================================================

func marshalWithIndent(doc *XMLDocument, indent string) []byte {
	var buffer bytes.Buffer

	buffer.WriteString("<")
	buffer.WriteString(doc.XMLName.Local)
	writeAttributes(&buffer, doc.Attributes)
	buffer.WriteString(">\n")

	for _, child := range doc.Children {
		writeElement(&buffer, child, indent, 1)
	}

	buffer.WriteString("</")
	buffer.WriteString(doc.XMLName.Local)
	buffer.WriteString(">\n")

	return buffer.Bytes()
}

func writeAttributes(buffer *bytes.Buffer, attrs []xml.Attr) {
	for _, attr := range attrs {
		fmt.Fprintf(buffer, " %s=\"%s\"", attr.Name.Local, escapeXML(attr.Value))
	}
}

func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)
	writeAttributes(buffer, element.Attributes)

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

func escapeXML(s string) string {
	var buffer bytes.Buffer
	if err := xml.EscapeText(&buffer, []byte(s)); err != nil {
		return s
	}
	return buffer.String()
}

// =============================================================================
// XSD GENERATION
// =============================================================================

// GenerateXSD returns an XML Schema describing the documents Generate
// writes with the given options.
func GenerateXSD(options GenerateOptions) []byte {
	var buffer bytes.Buffer

	buffer.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
`)
	fmt.Fprintf(&buffer, `  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="%s"/>
        <xs:element ref="%s" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>

`, options.RootElement, options.MetadataElement, options.TransactionElement)

	fmt.Fprintf(&buffer, `  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
`, options.MetadataElement)
	for _, f := range []struct {
		name, typ string
		required  bool
	}{
		{"source_file", "xs:string", false},
		{"import_id", "xs:string", true},
		{"imported_at", "xs:dateTime", true},
		{"total_transactions", "xs:nonNegativeInteger", true},
		{"bank", "xs:string", false},
		{"account", "xs:string", false},
		{"encoding", "xs:string", false},
		{"currency", "xs:string", false},
	} {
		writeXSDElement(&buffer, f.name, f.typ, f.required)
	}
	buffer.WriteString(`        <xs:element name="date_range">
          <xs:complexType>
            <xs:attribute name="start" type="xs:date"/>
            <xs:attribute name="end" type="xs:date"/>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
  </xs:element>

`)

	fmt.Fprintf(&buffer, `  <xs:element name="%s">
    <xs:complexType>
      <xs:sequence>
`, options.TransactionElement)
	for _, f := range []struct {
		name, typ string
		required  bool
	}{
		{"date", "xs:date", true},
		{"description", "xs:string", true},
		{"amount", "xs:decimal", true},
		{"balance", "xs:decimal", false},
		{"category", "xs:string", false},
		{"reference", "xs:string", false},
		{"account", "xs:string", false},
		{"bank", "xs:string", true},
	} {
		writeXSDElement(&buffer, f.name, f.typ, f.required)
	}
	buffer.WriteString("      </xs:sequence>\n")
	if options.TransactionIndexAttribute != "" {
		fmt.Fprintf(&buffer, "      <xs:attribute name=\"%s\" type=\"xs:positiveInteger\" use=\"required\"/>\n",
			options.TransactionIndexAttribute)
	}
	buffer.WriteString(`    </xs:complexType>
  </xs:element>

</xs:schema>
`)
	return buffer.Bytes()
}

func writeXSDElement(buffer *bytes.Buffer, name, typ string, required bool) {
	minOccurs := "0"
	if required {
		minOccurs = "1"
	}
	fmt.Fprintf(buffer, "        <xs:element name=\"%s\" type=\"%s\" minOccurs=\"%s\"/>\n", name, typ, minOccurs)
}
