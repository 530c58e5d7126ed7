package structured

import (
	"fmt"
	"strings"

	"manifold/internal/ingestion/types"
)

const extractionPromptTemplate = `You are processing data for: %s
Industry: %s

TASK: Extract structured product data from the source file and map it to the standard database schema.

SOURCE FILE: %s
EXPECTED FORMAT: %s

DEPLOYMENT INSTRUCTIONS:
%s

SOURCE DATA:
%s

STANDARD SCHEMA TO POPULATE:

1. products table: gtin (PRIMARY KEY), brand, product_name, price, currency,
   metadata (JSON object with anything else worth keeping).
2. syndication_products table: id (defaults to gtin), price, currency,
   images (JSON array), cad_files (JSON array), technical_specs (JSON
   object), compliance_data (JSON object).
3. data_quality table (single object, not a list): data_sources (JSON
   object keyed by source name), confidence_levels (JSON object mapping
   a confidence bucket to a list of field names), extraction_notes
   (JSON array of strings).

INSTRUCTIONS:
1. Extract ALL products found in the file.
2. Use null for missing optional fields.
3. Drop a product entirely if it has no gtin.

Return ONLY a JSON object shaped as:
{
  "products": [{...}],
  "syndication_products": [{...}],
  "data_quality": {...}
}
No markdown, no explanation, just the JSON object.
`

func (e *Extractor) buildPrompt(fileContent, filename string, deployment types.DeploymentContext) string {
	preview := fileContent
	if len(preview) > contentPreviewLimit {
		omitted := len(fileContent) - contentPreviewLimit
		preview = fileContent[:contentPreviewLimit] + fmt.Sprintf("\n\n... [TRUNCATED - %d chars omitted]", omitted)
	}

	company := deployment.CompanyName
	if strings.TrimSpace(company) == "" {
		company = "Unknown"
	}
	industry := deployment.Industry
	if strings.TrimSpace(industry) == "" {
		industry = "Unknown"
	}
	format := deployment.SourceFormat
	if strings.TrimSpace(format) == "" {
		format = "JSON"
	}

	return fmt.Sprintf(extractionPromptTemplate, company, industry, filename, format,
		deployment.IngestionInstructions, preview)
}
