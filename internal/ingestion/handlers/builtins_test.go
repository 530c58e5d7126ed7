package handlers

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractPlainText(t *testing.T) {
	path := writeFixture(t, "note.txt", "hello world\n")
	text, err := extractPlainText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", text)
}

func TestExtractDelimitedCSV(t *testing.T) {
	path := writeFixture(t, "data.csv", "name,age\nalice,30\nbob,40\n")
	text, err := extractDelimited(',')(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "name,age")
	assert.Contains(t, text, "alice,30")
	assert.Contains(t, text, "bob,40")
}

func TestExtractDelimitedSniffsSemicolon(t *testing.T) {
	path := writeFixture(t, "data.csv", "name;age\nalice;30\nbob;40\n")
	text, err := extractDelimited(',')(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "name;age")
	assert.Contains(t, text, "alice;30")
}

func TestSniffDelimiterPrefersConsistentCandidate(t *testing.T) {
	path := writeFixture(t, "data.tsv", "a\tb\tc\n1\t2\t3\n4\t5\t6\n")
	assert.Equal(t, '\t', sniffDelimiter(path, ','))
}

func TestSniffDelimiterFallsBackToPreferred(t *testing.T) {
	path := writeFixture(t, "data.txt", "no delimiters here\njust words\n")
	assert.Equal(t, ',', sniffDelimiter(path, ','))
}

func TestExtractXML(t *testing.T) {
	path := writeFixture(t, "doc.xml", `<root><title>Report</title><body>line one</body></root>`)
	text, err := extractXML(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Report")
	assert.Contains(t, text, "line one")
}

func TestExtractXMLInvalidReturnsError(t *testing.T) {
	path := writeFixture(t, "bad.xml", `<root><unclosed>`)
	_, err := extractXML(context.Background(), path)
	assert.Error(t, err)
}

func TestExtractHTMLMarkdownFallback(t *testing.T) {
	path := writeFixture(t, "page.html", `<html><body><p>plain paragraph</p></body></html>`)
	text, err := extractHTML(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "plain paragraph")
}

func TestExtractJSONRendersKeyPaths(t *testing.T) {
	path := writeFixture(t, "doc.json", `{"name":"widget","tags":["a","b"],"price":9.5}`)
	text, err := extractJSON(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "$.name: widget")
	assert.Contains(t, text, "$.tags[0]: a")
	assert.Contains(t, text, "$.tags[1]: b")
	assert.Contains(t, text, "$.price: 9.5")
}

func TestExtractJSONInvalidReturnsError(t *testing.T) {
	path := writeFixture(t, "bad.json", `{not valid json`)
	_, err := extractJSON(context.Background(), path)
	assert.Error(t, err)
}

func TestExtractEmailHeadersAndBody(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Quarterly update\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
		"\r\n" +
		"Here is the body text.\r\n"
	path := writeFixture(t, "msg.eml", raw)
	text, err := extractEmail(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "From: alice@example.com")
	assert.Contains(t, text, "Subject: Quarterly update")
	assert.Contains(t, text, "Here is the body text.")
}

func writeZipFixture(t *testing.T, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for partName, content := range parts {
		w, err := zw.Create(partName)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestExtractDOCXReadsDocumentPart(t *testing.T) {
	path := writeZipFixture(t, "report.docx", map[string]string{
		"word/document.xml": `<w:document><w:body><w:p>Hello from docx</w:p></w:body></w:document>`,
	})
	text, err := extractDOCX(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello from docx")
}

func TestExtractDOCXMissingPartReturnsError(t *testing.T) {
	path := writeZipFixture(t, "empty.docx", map[string]string{
		"word/other.xml": `<x/>`,
	})
	_, err := extractDOCX(context.Background(), path)
	assert.Error(t, err)
}

func TestExtractXLSXResolvesSharedStrings(t *testing.T) {
	sharedStrings := `<sst><si><t>Name</t></si><si><t>Widget</t></si></sst>`
	sheet := `<worksheet><sheetData>
		<row><c t="s"><v>0</v></c></row>
		<row><c t="s"><v>1</v></c></row>
	</sheetData></worksheet>`
	path := writeZipFixture(t, "book.xlsx", map[string]string{
		"xl/sharedStrings.xml":     sharedStrings,
		"xl/worksheets/sheet1.xml": sheet,
	})
	text, err := extractXLSX(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Name")
	assert.Contains(t, text, "Widget")
}

func TestExtractPDFUncompressedTextObjects(t *testing.T) {
	content := "BT /F1 12 Tf (Hello PDF World) Tj ET"
	path := writeFixture(t, "doc.pdf", content)
	text, err := extractPDFBestEffort(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Hello PDF World", text)
}

func TestExtractPDFCompressedStreamYieldsEmptyText(t *testing.T) {
	path := writeFixture(t, "scanned.pdf", "%PDF-1.4\n%binary-flate-stream-no-text-objects\n")
	text, err := extractPDFBestEffort(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractPDFWithOCRSkipsRasterizeWhenTextAboveFloor(t *testing.T) {
	content := "BT /F1 12 Tf (" + longPDFSentence + ") Tj ET"
	path := writeFixture(t, "doc.pdf", content)

	called := false
	ocr := func(ctx context.Context, png []byte) (string, error) {
		called = true
		return "should not be used", nil
	}

	text, err := extractPDFWithOCR(ocr)(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, longPDFSentence, text)
	assert.False(t, called, "OCR must not run when the text-layer scrape already clears the floor")
}

func TestExtractPDFWithOCRNilFuncReturnsScrapeOnly(t *testing.T) {
	path := writeFixture(t, "scanned.pdf", "%PDF-1.4\n%binary-flate-stream-no-text-objects\n")
	text, err := extractPDFWithOCR(nil)(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

const longPDFSentence = "This sentence is long enough to clear the minimum PDF text floor easily."

func TestExtractCADHeaderParsesStepFields(t *testing.T) {
	content := "ISO-10303-21;\nHEADER;\nFILE_DESCRIPTION(\n" +
		"/* description */ 'Bracket assembly',\n'2;1');\n" +
		"FILE_NAME('PN-4471.step','2024-01-01T00:00:00',('J. Engineer'),('Acme Manufacturing'),'','','');\n" +
		"FILE_SCHEMA(('AUTOMOTIVE_DESIGN'));\nENDSEC;\n"
	path := writeFixture(t, "bracket.step", content)
	text, err := extractCADHeader(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "PN-4471")
	assert.Contains(t, text, "J. Engineer")
	assert.Contains(t, text, "Acme Manufacturing")
	assert.Contains(t, text, "AUTOMOTIVE_DESIGN")
	assert.Contains(t, text, "Bracket assembly")
}

func TestExtractCADHeaderFallsBackWhenFieldsMissing(t *testing.T) {
	path := writeFixture(t, "part.stp", "ISO-10303-21;\nHEADER;\nENDSEC;\n")
	text, err := extractCADHeader(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "PART")
	assert.Contains(t, text, "unknown")
	assert.Contains(t, text, "unspecified")
}

func TestExtractXMLDetectsCatalogEnvelope(t *testing.T) {
	content := `<envelope>
		<item>
			<catalog>SKU-100</catalog>
			<prodName>Widget Pro</prodName>
			<brandLabel>Acme</brandLabel>
			<TradeName>AcmeBrand</TradeName>
			<prodType>Hardware</prodType>
			<upc>012345</upc>
			<gtin>00012345</gtin>
			<ean>4006381</ean>
			<etim>EC000123</etim>
			<unspsc>31162800</unspsc>
			<igcc>IGCC-1</igcc>
			<longDesc>A durable widget for industrial use.</longDesc>
			<prodFeature>Rustproof|Lightweight</prodFeature>
			<prodHgt>10</prodHgt>
			<prodWid>5</prodWid>
			<prodLen>2</prodLen>
			<prodHgtUOM>cm</prodHgtUOM>
			<Certifications>UL Listed</Certifications>
			<image>a.jpg</image>
			<image>b.jpg</image>
			<doc>spec.pdf</doc>
			<attribute>color=red</attribute>
		</item>
	</envelope>`
	path := writeFixture(t, "catalog.xml", content)
	text, err := extractXML(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "P360 SYNDICATION CATALOG - 1 PRODUCTS")
	assert.Contains(t, text, "PRODUCT #1: SKU-100")
	assert.Contains(t, text, "NAME: Widget Pro")
	assert.Contains(t, text, "BRAND: Acme AcmeBrand")
	assert.Contains(t, text, "IDENTIFIERS: SKU=SKU-100 UPC=012345 GTIN=00012345 EAN=4006381")
	assert.Contains(t, text, "CLASSIFICATIONS: ETIM=EC000123 UNSPSC=31162800 IGCC=IGCC-1")
	assert.Contains(t, text, "DESCRIPTION: A durable widget for industrial use.")
	assert.Contains(t, text, "- Rustproof")
	assert.Contains(t, text, "- Lightweight")
	assert.Contains(t, text, "DIMENSIONS: 10 x 5 x 2 cm")
	assert.Contains(t, text, "CERTIFICATIONS: UL Listed")
	assert.Contains(t, text, "MEDIA: 2 images, 1 documents, 1 attributes")
}

func TestExtractXMLNonEnvelopeStillWalksGeneric(t *testing.T) {
	path := writeFixture(t, "doc.xml", `<envelope><title>Not a catalog</title></envelope>`)
	text, err := extractXML(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Not a catalog")
}

func TestExtractImageNilAnalyzeReturnsEmptyText(t *testing.T) {
	path := writeFixture(t, "photo.jpg", "fake-jpeg-bytes")
	text, err := extractImage(nil)(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractImageInvokesAnalyzeWithBytesAndMIME(t *testing.T) {
	path := writeFixture(t, "photo.png", "fake-png-bytes")
	var gotData []byte
	var gotMIME string
	analyze := func(_ context.Context, data []byte, mimeType string) (string, error) {
		gotData = data
		gotMIME = mimeType
		return "a red widget on a shelf", nil
	}
	text, err := extractImage(analyze)(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "a red widget on a shelf", text)
	assert.Equal(t, "fake-png-bytes", string(gotData))
	assert.Equal(t, "image/png", gotMIME)
}

func TestExtractImageAnalyzeErrorDegradesToEmptyText(t *testing.T) {
	path := writeFixture(t, "photo.webp", "fake-webp-bytes")
	analyze := func(_ context.Context, _ []byte, _ string) (string, error) {
		return "", fmt.Errorf("analysis endpoint unreachable")
	}
	text, err := extractImage(analyze)(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, text)
}
