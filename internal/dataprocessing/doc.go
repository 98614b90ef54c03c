// Package dataprocessing turns a case line-list into the summary tables of
// the outbreak report.
//
// # Pipeline
//
// Data flows strictly one way:
//
//	CSV stream → Loader → Normalizer → Categorizer → Aggregator → SummarySet
//
// The Loader parses rows into domain.CaseRecord values, reading the two date
// columns day first and leaving unparseable dates as zero times. The
// Normalizer cleans gender and country labels, keeps confirmed cases only and
// normalizes symptom text. The Categorizer attaches an age bucket from the
// versioned age label table. The Aggregator computes the report tables; each
// one is a pure function of the record set listed in Summaries.
//
// Every stage returns a new slice. Records handed to the Aggregator are
// shared read-only between concurrently running summaries.
//
// # Usage
//
//	records, _, err := dataprocessing.NewLoader(logger).Load(ctx, r)
//	if err != nil {
//	    return err
//	}
//	confirmed, _ := dataprocessing.NewNormalizer(dataprocessing.DefaultNormalizationRules(), logger).Normalize(ctx, records)
//	categorized, _ := dataprocessing.NewCategorizer(dataprocessing.AgeTableV1(), logger).Categorize(ctx, confirmed)
//	set, err := dataprocessing.NewAggregator(true, logger).Summarize(ctx, categorized)
//
// # Ordering
//
// Count tables are sorted by count descending with ties broken by key
// ascending, so output is deterministic for a given input.
package dataprocessing
