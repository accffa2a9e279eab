package api

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// Paginated is the list envelope every admin list endpoint returns.
type Paginated struct {
	Items       interface{} `json:"items"`
	Total       int         `json:"total"`
	Pages       int         `json:"pages"`
	CurrentPage int         `json:"current_page"`
	PerPage     int         `json:"per_page"`
}

func NewPaginated(items interface{}, total, page, perPage int) Paginated {
	if perPage <= 0 {
		perPage = 50
	}
	pages := (total + perPage - 1) / perPage
	return Paginated{
		Items:       items,
		Total:       total,
		Pages:       pages,
		CurrentPage: page,
		PerPage:     perPage,
	}
}
