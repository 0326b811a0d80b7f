package storage

import (
	"context"
	"time"

	"github.com/dekelcohen/CTags/pkg/types"
)

// Storage defines the interface for persisting and querying indexed tag data
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error
	ListProjects(ctx context.Context) ([]*Project, error)

	// Tag file operations
	UpsertTagFile(ctx context.Context, file *TagFile) error
	GetTagFile(ctx context.Context, projectID int64, filePath string) (*TagFile, error)
	ListTagFiles(ctx context.Context, projectID int64) ([]*TagFile, error)
	DeleteTagFile(ctx context.Context, fileID int64) error

	// Tag operations
	InsertTags(ctx context.Context, tags []*TagRecord) error
	ListTagsByName(ctx context.Context, projectID int64, name string) ([]*TagRecord, error)
	DeleteTagsByFile(ctx context.Context, fileID int64) error
	SearchTags(ctx context.Context, projectID int64, query string, limit int) ([]TagSearchResult, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project is a source tree whose tag files are indexed
type Project struct {
	ID            int64
	RootPath      string
	TotalTagFiles int
	TotalTags     int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TagFile is a tracked ctags index file
type TagFile struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	TagCount      int
	ErrorCount    int     // Malformed lines skipped while parsing
	ParseError    *string // First parse error, nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TagRecord is a stored tag. Ordinal preserves the tag's position within its
// tag file so lookups return candidates in index order.
type TagRecord struct {
	ID        int64
	TagFileID int64
	Ordinal   int
	Name      string
	Kind      string
	FilePath  string
	Line      int
	Pattern   string
	Scope     string
	Fields    map[string]string
	CreatedAt time.Time
}

// TagSearchResult is a full-text match with its BM25 score (lower is better)
type TagSearchResult struct {
	Tag       *TagRecord
	BM25Score float64
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project       *Project
	TagFilesCount int
	TagsCount     int
	ErrorCount    int
	IndexSizeMB   float64
	LastIndexedAt time.Time
	Health        HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}

// ToTypesTag converts a stored tag to types.Tag
func (r *TagRecord) ToTypesTag() types.Tag {
	return types.Tag{
		Name:     r.Name,
		Kind:     r.Kind,
		FilePath: r.FilePath,
		Line:     r.Line,
		Pattern:  r.Pattern,
		Scope:    r.Scope,
		Fields:   r.Fields,
	}
}

// FromTypesTag converts types.Tag to a storage record
func FromTypesTag(t types.Tag, tagFileID int64, ordinal int) *TagRecord {
	return &TagRecord{
		TagFileID: tagFileID,
		Ordinal:   ordinal,
		Name:      t.Name,
		Kind:      t.Kind,
		FilePath:  t.FilePath,
		Line:      t.Line,
		Pattern:   t.Pattern,
		Scope:     t.Scope,
		Fields:    t.Fields,
	}
}
