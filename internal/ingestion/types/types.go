// Package types defines the data model shared across the ingestion
// subsystems: file descriptors, chunks, embedding records, tabular
// record shapes, entities/relationships, and run progress.
package types

import "time"

// ExtractionStatus tracks a FileDescriptor through the pipeline.
type ExtractionStatus string

const (
	StatusPending     ExtractionStatus = "pending"
	StatusOK          ExtractionStatus = "ok"
	StatusEmpty       ExtractionStatus = "empty"
	StatusUnsupported ExtractionStatus = "unsupported"
	StatusFailed      ExtractionStatus = "failed"
)

// FileDescriptor is one discovered file, mutated in place as it moves
// through the pipeline stages. Owned exclusively by one ingestion run.
type FileDescriptor struct {
	Path             string
	Name             string
	Extension        string // lowercased, dot-prefixed
	SizeBytes        int64
	ModifiedAt       time.Time
	MIMEHint         string
	PreAssignedCat   string // optional, from caller (folder-level)
	Category         string // assigned by classifier
	ExtractedText    string
	ExtractionStatus ExtractionStatus
	LastError        string
}

// Chunk is a contiguous text fragment belonging to one document.
type Chunk struct {
	ID         string // document_id + "_" + ordinal
	DocumentID string
	Ordinal    int
	Text       string
	CharCount  int
	WordCount  int
}

// EmbeddingRecord is one vector row for a chunk that yielded an embedding.
type EmbeddingRecord struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Category   string
	Ordinal    int
	Text       string
	Vector     []float32
}

// DocumentRecord is the document row shape; the tabular store writes it
// to general_documents, with Category as a column.
type DocumentRecord struct {
	ID          string
	CustomerID  string
	Path        string
	Filename    string
	Category    string
	FullText    string
	ChunkCount  int
	SizeBytes   int64
	ModifiedAt  time.Time
	IngestedAt  time.Time
	MIMEType    string
	Extension   string
	Metadata    map[string]any
}

// ChunkRecord is the chunk row shape; the tabular store writes it to
// general_chunks.
type ChunkRecord struct {
	ID         string
	CustomerID string
	DocumentID string
	Ordinal    int
	Text       string
	CharCount  int
	WordCount  int
}

// Money is a fixed-point decimal amount with a currency code, used for
// the standard product tables' price fields. Stored as integer minor
// units to avoid float rounding.
type Money struct {
	MinorUnits int64
	Currency   string
}

// ProductRecord is the standard `products` table row shape.
type ProductRecord struct {
	CustomerID  string
	GTIN        string // primary key
	Brand       string
	Name        string
	Price       Money
	IngestedAt  time.Time
	Metadata    map[string]any
}

// SyndicationProductRecord is the standard `syndication_products` table row shape.
type SyndicationProductRecord struct {
	CustomerID       string
	ID               string // primary key, defaults to GTIN
	Price            Money
	LastUpdated      time.Time
	Images           []string
	CADFiles         []string
	TechnicalSpecs   map[string]any
	ComplianceData   map[string]any
}

// DataQualityAuditRecord is the standard `data_quality_audit` table row shape.
type DataQualityAuditRecord struct {
	CustomerID       string
	ID               string // primary key
	DataSources      []string
	ConfidenceLevels map[string]float64
	ExtractionNotes  []string
	ValidationErrors []string
	CreatedAt        time.Time
	VerifiedAt       *time.Time
}

// EntityType is the closed set of entity classes the extractor emits.
type EntityType string

const (
	EntityPerson  EntityType = "PERSON"
	EntityOrg     EntityType = "ORG"
	EntityLoc     EntityType = "LOC"
	EntityProduct EntityType = "PRODUCT"
	EntityDate    EntityType = "DATE"
	EntityMoney   EntityType = "MONEY"
	EntityMisc    EntityType = "MISC"
)

// Entity is an extracted named reference. Identity = hash(Text, Type).
type Entity struct {
	ID         string
	Text       string
	Type       EntityType
	Start      int
	End        int
	Context    string
	Confidence float64
	DocumentID string
}

// Relationship is a directed, labeled edge between two Entities.
type Relationship struct {
	SourceEntityID string
	TargetEntityID string
	Type           string
	Confidence     float64
}

// RunStatus tracks the Orchestrator's state machine.
type RunStatus string

const (
	RunPending     RunStatus = "pending"
	RunCrawling    RunStatus = "crawling"
	RunClassifying RunStatus = "classifying"
	RunProcessing  RunStatus = "processing"
	RunEmbedding   RunStatus = "embedding"
	RunLoading     RunStatus = "loading"
	RunComplete    RunStatus = "complete"
	RunFailed      RunStatus = "failed"
)

const maxRetainedErrors = 10

// IngestionProgress is the single run-scoped progress record written by
// the Orchestrator and read by observers. Observers must not mutate it.
type IngestionProgress struct {
	Status             RunStatus
	Total              int
	Processed          int
	Failed             int
	CurrentFile        string
	CurrentPhase       string
	StartedAt          time.Time
	CompletedAt        *time.Time
	CountsByCategory   map[string]int
	Errors             []string
	UnknownExtensions  []string
}

// AppendError records an error message, keeping only the last N.
func (p *IngestionProgress) AppendError(msg string) {
	p.Errors = append(p.Errors, msg)
	if len(p.Errors) > maxRetainedErrors {
		p.Errors = p.Errors[len(p.Errors)-maxRetainedErrors:]
	}
}

// DeploymentContext is the read-only per-run descriptor consumed by the
// structured extractor to direct schema mapping.
type DeploymentContext struct {
	CustomerID             string
	CompanyName            string
	Industry               string
	SourceFormat           string
	IngestionInstructions  string // free-form, preserved verbatim
}
