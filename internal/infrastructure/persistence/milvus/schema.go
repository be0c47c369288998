// Package milvus provides the vector store access layer.
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionSermonSegments holds one vector per transcript segment.
	CollectionSermonSegments = "segments"
	// CollectionSermonSummaries holds the sermon- and series-level
	// aggregate vectors.
	CollectionSermonSummaries = "summaries"

	// DefaultVectorDimension is used when config does not override it.
	DefaultVectorDimension = 1024

	// SummaryLevelSermon and SummaryLevelSeries tag aggregate rows.
	SummaryLevelSermon = "sermon"
	SummaryLevelSeries = "series"
)

// SegmentVector is a segment row in the vector store.
type SegmentVector struct {
	ID         string    `json:"id"`
	Vector     []float32 `json:"vector"`
	SeriesID   string    `json:"series_id"`
	SermonID   string    `json:"sermon_id"`
	Speaker    string    `json:"speaker"`
	SermonDate int64     `json:"sermon_date"`
	Text       string    `json:"text"`
}

// SummaryVector is an aggregate row in the vector store.
type SummaryVector struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	SeriesID string    `json:"series_id"`
	SermonID string    `json:"sermon_id"`
	Level    string    `json:"level"`
	Summary  string    `json:"summary"`
}

// SermonSegmentsSchema builds the segments collection schema.
func SermonSegmentsSchema(dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: CollectionSermonSegments,
		Description:    "Sermon transcript segments for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     "series_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "sermon_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "speaker",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "sermon_date",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// SermonSummariesSchema builds the summaries collection schema.
func SermonSummariesSchema(dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: CollectionSermonSummaries,
		Description:    "Sermon and series aggregate vectors",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     "series_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "sermon_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "level",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "16",
				},
			},
			{
				Name:     "summary",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}
