package models

// parameters for searching requests; zero values mean "no filter"
type RequestSearch struct {
	Status  []string
	Action  []string
	Record  string // record uuid
	Sort    string
	Desc    bool
	Page    int
	PerPage int
}

// one row of a per-(status, action) request summary
type RequestSummary struct {
	Status string `json:"status"`
	Action string `json:"action"`
	Count  int64  `json:"count"`
	Files  int64  `json:"files"`
	Size   int64  `json:"size"`
}

// valid sort columns for request searches
var requestSortColumns = map[string]string{
	"id":           "id",
	"created_at":   "created_at",
	"started_at":   "started_at",
	"completed_at": "completed_at",
	"status":       "status",
	"action":       "action",
	"size":         "size",
	"num_files":    "num_files",
}

// Searches requests with the given filters, sort, and pagination, returning
// the matching page and the total number of matches.
func (s *Store) SearchRequests(params RequestSearch) ([]Request, int64, error) {
	query := s.db.Model(&Request{})
	if len(params.Status) > 0 {
		query = query.Where("status IN ?", params.Status)
	}
	if len(params.Action) > 0 {
		query = query.Where("action IN ?", params.Action)
	}
	if params.Record != "" {
		query = query.Where("record_id = ?", params.Record)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at desc"
	if column, found := requestSortColumns[params.Sort]; found {
		order = column + " asc"
		if params.Desc {
			order = column + " desc"
		}
	}
	query = query.Order(order)

	if params.Page > 0 {
		perPage := params.PerPage
		if perPage <= 0 {
			perPage = 10
		}
		query = query.Offset((params.Page - 1) * perPage).Limit(perPage)
	}

	var requests []Request
	err := query.Find(&requests).Error
	return requests, total, err
}

// Summarizes requests grouped by status and action: counts, file counts,
// and sizes.
func (s *Store) SummarizeRequests(params RequestSearch) ([]RequestSummary, error) {
	query := s.db.Model(&Request{}).
		Select("status, action, count(*) as count, " +
			"coalesce(sum(num_files), 0) as files, coalesce(sum(size), 0) as size").
		Group("status, action").
		Order("status, action")
	if len(params.Status) > 0 {
		query = query.Where("status IN ?", params.Status)
	}
	if len(params.Action) > 0 {
		query = query.Where("action IN ?", params.Action)
	}
	if params.Record != "" {
		query = query.Where("record_id = ?", params.Record)
	}

	var summary []RequestSummary
	err := query.Scan(&summary).Error
	return summary, err
}
