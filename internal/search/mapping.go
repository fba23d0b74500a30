package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for clip documents.
//
//  1. Description is English full text with stemming
//  2. Tag names use the simple analyzer so "Road Trips" matches "road"
//  3. URLs are tokenized by the simple analyzer (host and path words)
//  4. Hidden is a boolean filter; timestamps sort by recency
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = simple.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	urlsFieldMapping := bleve.NewTextFieldMapping()
	urlsFieldMapping.Analyzer = simple.Name
	urlsFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("urls", urlsFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	hiddenFieldMapping := bleve.NewBooleanFieldMapping()
	docMapping.AddFieldMappingsAt("hidden", hiddenFieldMapping)

	itemCountFieldMapping := bleve.NewNumericFieldMapping()
	itemCountFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("item_count", itemCountFieldMapping)

	registeredAtFieldMapping := bleve.NewNumericFieldMapping()
	registeredAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("registered_at", registeredAtFieldMapping)

	updatedAtFieldMapping := bleve.NewNumericFieldMapping()
	updatedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
