package handlers

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/mail"
	"os"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"
)

// registerBuiltins installs the built-in handler set for the formats
// listed in original_source/ingestion/crawler/file_handlers/ (csv, docx,
// email, image, xlsx/xls, xml + the P360 catalog envelope, stp/step CAD
// headers); PDF rasterize-OCR and image analysis have no supporting
// library anywhere in the example corpus (confirmed by grepping every
// go.mod in the retrieval pack) for the recognition step itself, so
// those handlers take an optional analysis function wired in at setup
// and degrade to the best-effort "unavailable" branch (empty text,
// status "empty") when it's nil, rather than fabricating a dependency
// the corpus never shows. Legacy `.xls` reuses the `.xlsx` OOXML zip
// reader: no binary-OLE2 spreadsheet library exists in the corpus
// either, so a real `.xls` file degrades the same way.
func registerBuiltins(r *Registry) {
	r.handlers[".txt"] = HandlerFunc(extractPlainText)
	r.handlers[".md"] = HandlerFunc(extractPlainText)
	r.handlers[".csv"] = HandlerFunc(extractDelimited(','))
	r.handlers[".tsv"] = HandlerFunc(extractDelimited('\t'))
	r.handlers[".xml"] = HandlerFunc(extractXML)
	r.handlers[".html"] = HandlerFunc(extractHTML)
	r.handlers[".htm"] = HandlerFunc(extractHTML)
	r.handlers[".json"] = HandlerFunc(extractJSON)
	r.handlers[".eml"] = HandlerFunc(extractEmail)
	r.handlers[".docx"] = HandlerFunc(extractDOCX)
	r.handlers[".xlsx"] = HandlerFunc(extractXLSX)
	r.handlers[".xls"] = HandlerFunc(extractXLSX)
	r.handlers[".pdf"] = HandlerFunc(extractPDFBestEffort)
	r.handlers[".stp"] = HandlerFunc(extractCADHeader)
	r.handlers[".step"] = HandlerFunc(extractCADHeader)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		r.handlers[ext] = extractImage(nil)
	}
}

func extractPlainText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// extractDelimited auto-sniffs the delimiter by per-line count
// consistency when the caller-supplied default doesn't parse cleanly,
// and renders rows back as delimiter-joined text (the chunker's tabular
// strategy then re-packs them with a header).
func extractDelimited(preferred rune) func(context.Context, string) (string, error) {
	return func(_ context.Context, path string) (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		delim := sniffDelimiter(path, preferred)
		reader := csv.NewReader(f)
		reader.Comma = delim
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		var sb strings.Builder
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				continue // skip malformed rows rather than failing the whole file
			}
			sb.WriteString(strings.Join(record, string(delim)))
			sb.WriteString("\n")
		}
		return sb.String(), nil
	}
}

func sniffDelimiter(path string, preferred rune) rune {
	f, err := os.Open(path)
	if err != nil {
		return preferred
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	candidates := []rune{preferred, ',', '\t', ';'}
	counts := map[rune][]int{}
	lines := 0
	for scanner.Scan() && lines < 10 {
		line := scanner.Text()
		for _, c := range candidates {
			counts[c] = append(counts[c], strings.Count(line, string(c)))
		}
		lines++
	}
	best, bestConsistency := preferred, -1
	for _, c := range candidates {
		cs := counts[c]
		if len(cs) == 0 || cs[0] == 0 {
			continue
		}
		consistent := true
		for _, n := range cs {
			if n != cs[0] {
				consistent = false
				break
			}
		}
		if consistent && cs[0] > bestConsistency {
			bestConsistency = cs[0]
			best = c
		}
	}
	return best
}

// xmlNode is a generic tag-walk target for extractXML.
type xmlNode struct {
	XMLName  xml.Name
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func extractXML(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("parse xml %s: %w", path, err)
	}
	if root.XMLName.Local == "envelope" {
		if items := childrenByTag(root, "item"); len(items) > 0 {
			return renderCatalogEnvelope(items), nil
		}
	}
	var sb strings.Builder
	walkXML(root, &sb)
	return strings.TrimSpace(sb.String()), nil
}

func walkXML(n xmlNode, sb *strings.Builder) {
	if text := strings.TrimSpace(n.Content); text != "" {
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	for _, c := range n.Children {
		walkXML(c, sb)
	}
}

func childrenByTag(n xmlNode, tag string) []xmlNode {
	var out []xmlNode
	for _, c := range n.Children {
		if c.XMLName.Local == tag {
			out = append(out, c)
		}
	}
	return out
}

func childText(n xmlNode, tag string) string {
	for _, c := range n.Children {
		if c.XMLName.Local == tag {
			return strings.TrimSpace(c.Content)
		}
	}
	return ""
}

// renderCatalogEnvelope renders a P360/Informatica syndication catalog
// (<envelope><item>...</item></envelope>, ~79 fields per product) as
// per-product text blocks suitable for chunking and embedding.
func renderCatalogEnvelope(items []xmlNode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "P360 SYNDICATION CATALOG - %d PRODUCTS\n\n", len(items))
	for i, item := range items {
		sku := childText(item, "catalog")
		fmt.Fprintf(&sb, "PRODUCT #%d: %s\n", i+1, sku)
		fmt.Fprintf(&sb, "NAME: %s\n", childText(item, "prodName"))
		fmt.Fprintf(&sb, "BRAND: %s %s\n", childText(item, "brandLabel"), childText(item, "TradeName"))
		fmt.Fprintf(&sb, "TYPE: %s\n", childText(item, "prodType"))
		fmt.Fprintf(&sb, "IDENTIFIERS: SKU=%s UPC=%s GTIN=%s EAN=%s\n", sku, childText(item, "upc"), childText(item, "gtin"), childText(item, "ean"))
		fmt.Fprintf(&sb, "CLASSIFICATIONS: ETIM=%s UNSPSC=%s IGCC=%s\n", childText(item, "etim"), childText(item, "unspsc"), childText(item, "igcc"))
		if desc := childText(item, "longDesc"); desc != "" {
			fmt.Fprintf(&sb, "DESCRIPTION: %s\n", desc)
		}
		if features := childText(item, "prodFeature"); features != "" {
			sb.WriteString("FEATURES:\n")
			for _, f := range strings.Split(features, "|") {
				if f = strings.TrimSpace(f); f != "" {
					fmt.Fprintf(&sb, "  - %s\n", f)
				}
			}
		}
		if hgt, wid, ln := childText(item, "prodHgt"), childText(item, "prodWid"), childText(item, "prodLen"); hgt != "" && wid != "" && ln != "" {
			fmt.Fprintf(&sb, "DIMENSIONS: %s x %s x %s %s\n", hgt, wid, ln, childText(item, "prodHgtUOM"))
		}
		if cert := childText(item, "Certifications"); cert != "" {
			fmt.Fprintf(&sb, "CERTIFICATIONS: %s\n", cert)
		}
		fmt.Fprintf(&sb, "MEDIA: %d images, %d documents, %d attributes\n\n",
			len(childrenByTag(item, "image")), len(childrenByTag(item, "doc")), len(childrenByTag(item, "attribute")))
	}
	return strings.TrimSpace(sb.String())
}

func extractHTML(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if article, err := readability.FromReader(f, nil); err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	out, err := md.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("convert html %s: %w", path, err)
	}
	return out, nil
}

// extractJSON renders a JSON document via recursive key-path rendering.
func extractJSON(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("parse json %s: %w", path, err)
	}
	var sb strings.Builder
	renderJSONPaths("$", v, &sb)
	return strings.TrimSpace(sb.String()), nil
}

func renderJSONPaths(prefix string, v any, sb *strings.Builder) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			renderJSONPaths(prefix+"."+k, child, sb)
		}
	case []any:
		for i, child := range val {
			renderJSONPaths(fmt.Sprintf("%s[%d]", prefix, i), child, sb)
		}
	default:
		fmt.Fprintf(sb, "%s: %v\n", prefix, val)
	}
}

func extractEmail(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	m, err := mail.ReadMessage(f)
	if err != nil {
		return "", fmt.Errorf("parse email %s: %w", path, err)
	}
	var sb strings.Builder
	for _, h := range []string{"From", "To", "Subject", "Date"} {
		if v := m.Header.Get(h); v != "" {
			fmt.Fprintf(&sb, "%s: %s\n", h, v)
		}
	}
	sb.WriteString("\n")
	body, err := io.ReadAll(m.Body)
	if err != nil {
		return "", fmt.Errorf("read email body %s: %w", path, err)
	}
	sb.Write(body)
	return sb.String(), nil
}

// extractDOCX reads word/document.xml out of the OOXML zip container
// (a .docx is just a zip of XML parts — no third-party library is
// needed or present anywhere in the corpus for this).
func extractDOCX(ctx context.Context, path string) (string, error) {
	return extractOOXMLPart(path, "word/document.xml")
}

// extractXLSX reads sharedStrings.xml + every sheetN.xml, rendering
// cells as delimited rows (shared-string indices resolved).
func extractXLSX(_ context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx %s: %w", path, err)
	}
	defer zr.Close()

	shared := readSharedStrings(zr)

	var sb strings.Builder
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "xl/worksheets/sheet") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		renderSheet(rc, shared, &sb)
		rc.Close()
	}
	return sb.String(), nil
}

type xlsxSST struct {
	SI []struct {
		T string `xml:"t"`
	} `xml:"si"`
}

func readSharedStrings(zr *zip.ReadCloser) []string {
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		var sst xlsxSST
		if err := xml.NewDecoder(rc).Decode(&sst); err != nil {
			return nil
		}
		out := make([]string, len(sst.SI))
		for i, s := range sst.SI {
			out[i] = s.T
		}
		return out
	}
	return nil
}

type xlsxSheet struct {
	Rows []struct {
		Cells []struct {
			Type  string `xml:"t,attr"`
			Value string `xml:"v"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

var cellIndexRE = regexp.MustCompile(`^\d+$`)

func renderSheet(r io.Reader, shared []string, sb *strings.Builder) {
	var sheet xlsxSheet
	if err := xml.NewDecoder(r).Decode(&sheet); err != nil {
		return
	}
	for _, row := range sheet.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			v := c.Value
			if c.Type == "s" && cellIndexRE.MatchString(v) {
				var idx int
				fmt.Sscanf(v, "%d", &idx)
				if idx >= 0 && idx < len(shared) {
					v = shared[idx]
				}
			}
			cells = append(cells, v)
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteString("\n")
	}
}

func extractOOXMLPart(path, partName string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open ooxml %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != partName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open part %s: %w", partName, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("read part %s: %w", partName, err)
		}
		return stripXMLTags(string(data)), nil
	}
	return "", fmt.Errorf("part %s not found in %s", partName, path)
}

var xmlTagRE = regexp.MustCompile(`<[^>]+>`)

func stripXMLTags(s string) string {
	return strings.TrimSpace(xmlTagRE.ReplaceAllString(s, " "))
}

// pdfTextObjectRE matches simple uncompressed PDF text-showing operators
// (Tj/TJ inside BT...ET blocks). This only recovers text from PDFs whose
// content streams are not Flate-compressed — a deliberate best-effort
// floor, since no PDF parsing library exists anywhere in the example
// corpus. Compressed streams fall through to an empty result, leaving
// OCR as the only remaining fallback.
var pdfTextObjectRE = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)

func extractPDFBestEffort(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	matches := pdfTextObjectRE.FindAllSubmatch(data, -1)
	var sb strings.Builder
	for _, m := range matches {
		sb.Write(unescapePDFString(m[1]))
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String()), nil
}

func unescapePDFString(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			i++
			switch b[i] {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, b[i])
			}
			continue
		}
		out = append(out, b[i])
	}
	return out
}
