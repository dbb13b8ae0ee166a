package pagination

// Strategy turns request parameters into a repository query and builds response metadata
// from its result.
type Strategy interface {
	CalculateQuery(params Params) QueryParams
	BuildMetadata(params Params, total int64) Metadata
}

// QueryParams is the repository-facing window.
type QueryParams struct {
	Offset int
	Limit  int
}

// OffsetStrategy pages with LIMIT/OFFSET and a total COUNT.
type OffsetStrategy struct{}

// CalculateQuery returns the offset and limit for params.
func (OffsetStrategy) CalculateQuery(params Params) QueryParams {
	return QueryParams{
		Offset: CalculateOffset(params.Page, params.Limit),
		Limit:  params.Limit,
	}
}

// BuildMetadata returns page metadata for a result set of total rows.
func (OffsetStrategy) BuildMetadata(params Params, total int64) Metadata {
	return Metadata{
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: CalculateTotalPages(total, params.Limit),
	}
}
