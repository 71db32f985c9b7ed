package handler

import (
	"fmt"

	"bizreg/internal/business/analysis"
	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
)

type MessageResponse struct {
	Message string `json:"message"`
}

type ListResponse struct {
	Success    bool                     `json:"success"`
	Data       []*models.BusinessRecord `json:"data"`
	Pagination query.PageInfo           `json:"pagination"`
}

type RecordResponse struct {
	Success bool                   `json:"success"`
	Data    *models.BusinessRecord `json:"data"`
}

type SearchResponse struct {
	Success bool                     `json:"success"`
	Count   int                      `json:"count"`
	Data    []*models.BusinessRecord `json:"data"`
}

type YearResponse struct {
	Success    bool                     `json:"success"`
	Year       string                   `json:"year"`
	Data       []*models.BusinessRecord `json:"data"`
	Statistics analysis.YearStatistics  `json:"statistics"`
}

type DashboardResponse struct {
	Success bool                `json:"success"`
	Data    *analysis.Dashboard `json:"data"`
}

func nonNil(recs []*models.BusinessRecord) []*models.BusinessRecord {
	if recs == nil {
		return []*models.BusinessRecord{}
	}
	return recs
}

func toSearchResponse(recs []*models.BusinessRecord) *SearchResponse {
	recs = nonNil(recs)
	return &SearchResponse{Success: true, Count: len(recs), Data: recs}
}

func toYearResponse(r *analysis.YearReport) *YearResponse {
	return &YearResponse{
		Success:    true,
		Year:       fmt.Sprintf("%04d", r.Year),
		Data:       nonNil(r.Records),
		Statistics: r.Statistics,
	}
}
